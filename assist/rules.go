package assist

import (
	"regexp"
	"strings"

	"github.com/reusee/taibeat/vars"
)

// Rule edits code when its pattern matches the user message.
type Rule struct {
	Pattern *regexp.Regexp
	Edit    func(code string, bpm float64) string
	Message string
	// SetBPM, when set, computes the tempo the engine should switch to
	SetBPM func(bpm float64) float64
}

type Result struct {
	Code    string
	Message string
	BPM     *float64
}

const NoMatchMessage = "I didn't match that. Try: make it faster, add swing, more hats, darker, add reverb."

var (
	swingAssign   = regexp.MustCompile(`(Transport\.swing\s*=\s*)[\d.]+`)
	transportDecl = regexp.MustCompile(`(var Transport = ctx\.Transport;)`)
	hatChance     = regexp.MustCompile(`Math\.random\(\)\s*<\s*[\d.]+`)
	filterParam   = regexp.MustCompile(`(?i)(frequency|rolloff).*?[\d.]+`)
	volumeDecl    = regexp.MustCompile(`var vol = new Tone\.Volume\(volume\)\.connect\(destination\);?`)
	hasFilter     = regexp.MustCompile(`Tone\.Filter|\.filter`)
	hasReverb     = regexp.MustCompile(`Tone\.Reverb|\.reverb`)
)

func same(code string, _ float64) string {
	return code
}

var Rules = []Rule{
	{
		Pattern: regexp.MustCompile(`(?i)make it faster|faster|speed up|increase bpm`),
		Edit:    same,
		Message: "Increased BPM for a faster tempo.",
		SetBPM: func(bpm float64) float64 {
			return min(180, bpm+15)
		},
	},
	{
		Pattern: regexp.MustCompile(`(?i)make it slower|slower|slow down|decrease bpm`),
		Edit:    same,
		Message: "Decreased BPM for a slower tempo.",
		SetBPM: func(bpm float64) float64 {
			return max(60, bpm-15)
		},
	},
	{
		Pattern: regexp.MustCompile(`(?i)add swing|swing|groove`),
		Edit: func(code string, _ float64) string {
			if swingAssign.MatchString(code) {
				return replaceFirst(swingAssign, code, "${1}0.1")
			}
			return replaceFirst(transportDecl, code, "${1}\n  Transport.swing = 0.1;")
		},
		Message: "Added swing to the transport for a groovier feel.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)more hats|more hi.?hats|increase hat`),
		Edit: func(code string, _ float64) string {
			return replaceFirst(hatChance, code, "Math.random() < 0.9")
		},
		Message: "Increased hi-hat probability (more hats).",
	},
	{
		Pattern: regexp.MustCompile(`(?i)fewer hats|less hats|reduce hat`),
		Edit: func(code string, _ float64) string {
			return replaceFirst(hatChance, code, "Math.random() < 0.5")
		},
		Message: "Decreased hi-hat probability (fewer hats).",
	},
	{
		Pattern: regexp.MustCompile(`(?i)darker|dark|low.?pass|filter`),
		Edit: func(code string, _ float64) string {
			if hasFilter.MatchString(code) {
				return filterParam.ReplaceAllLiteralString(code, "frequency: 800")
			}
			return replaceFirst(volumeDecl, code,
				"var filter = new Tone.Filter(800, \"lowpass\").connect(destination);\n  var vol = new Tone.Volume(volume).connect(filter);")
		},
		Message: "Lowered filter cutoff for a darker sound.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)add reverb|reverb|wet`),
		Edit: func(code string, _ float64) string {
			if hasReverb.MatchString(code) {
				return code
			}
			return replaceFirst(volumeDecl, code,
				"var reverb = new Tone.Reverb({ decay: 2, wet: 0.3 }).connect(destination);\n  var vol = new Tone.Volume(volume).connect(reverb);")
		},
		Message: "Added reverb to the patch.",
	},
}

// Local runs the message through the rule table. The first matching rule
// wins; without a match the code comes back unchanged.
func Local(message, code string, bpm float64) Result {
	text := strings.TrimSpace(message)
	for _, rule := range Rules {
		if !rule.Pattern.MatchString(text) {
			continue
		}
		ret := Result{
			Code:    rule.Edit(code, bpm),
			Message: rule.Message,
		}
		if rule.SetBPM != nil {
			ret.BPM = vars.PtrTo(rule.SetBPM(bpm))
		}
		return ret
	}
	return Result{
		Code:    code,
		Message: NoMatchMessage,
	}
}

// replaceFirst expands template for the first match only.
func replaceFirst(re *regexp.Regexp, src, template string) string {
	loc := re.FindStringSubmatchIndex(src)
	if loc == nil {
		return src
	}
	expanded := re.ExpandString(nil, template, src, loc)
	return src[:loc[0]] + string(expanded) + src[loc[1]:]
}
