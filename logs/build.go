package logs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// BuildID identifies one patch build attempt.
type BuildID string

type buildKey struct{}

// NewBuild returns a context carrying a fresh build id.
func NewBuild(ctx context.Context) (context.Context, BuildID) {
	id := BuildID(uuid.NewString())
	return context.WithValue(ctx, buildKey{}, id), id
}

func BuildFrom(ctx context.Context) (BuildID, bool) {
	id, ok := ctx.Value(buildKey{}).(BuildID)
	return id, ok
}

func WrapBuild(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	id, ok := BuildFrom(ctx)
	if !ok {
		return err
	}
	return errors.Join(err, fmt.Errorf("build: %s", id))
}
