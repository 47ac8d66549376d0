package ai

import (
	"context"

	"github.com/reqforge/apiserver/types"
)

// Unconfigured is the generator used when no API key is set. The server still
// starts; generation requests fail with ErrNotConfigured at call time.
type Unconfigured struct{}

func (Unconfigured) Generate(context.Context, types.Artifact, string) (string, error) {
	return "", ErrNotConfigured
}
