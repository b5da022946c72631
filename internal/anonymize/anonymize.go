// Package anonymize rewrites player submissions so their style does not give
// the author away.
package anonymize

import (
	"context"
	"fmt"
	"strings"

	engine "github.com/AngelGarcia/Mistery/engine"
	"github.com/sirupsen/logrus"
)

// Anonymizer maps phrases to anonymized phrases of the same length and order.
type Anonymizer interface {
	Anonymize(ctx context.Context, phrases []string) ([]string, error)
}

// Func adapts a function to Anonymizer.
type Func func(ctx context.Context, phrases []string) ([]string, error)

func (f Func) Anonymize(ctx context.Context, phrases []string) ([]string, error) {
	return f(ctx, phrases)
}

// Identity returns its input unchanged.
var Identity Anonymizer = Func(func(_ context.Context, phrases []string) ([]string, error) {
	return append([]string(nil), phrases...), nil
})

// Fallback never fails: when Next errors, breaks cardinality or returns a
// blank phrase, the input is returned as a seeded shuffle of itself. The
// result is degraded (not anonymized) but the submission goes through.
type Fallback struct {
	Next Anonymizer
	Log  logrus.FieldLogger
}

func (f Fallback) Anonymize(ctx context.Context, phrases []string) ([]string, error) {
	out, err := f.Next.Anonymize(ctx, phrases)
	if err == nil && len(out) != len(phrases) {
		err = fmt.Errorf("anonymizer returned %d phrases for %d", len(out), len(phrases))
	}
	if err == nil {
		for i, text := range out {
			if strings.TrimSpace(text) == "" {
				err = fmt.Errorf("anonymizer returned a blank phrase at %d", i)
				break
			}
		}
	}
	if err == nil {
		return out, nil
	}
	f.Log.WithError(err).WithField("phrases", len(phrases)).Warn("anonymization failed, using fallback")
	return engine.ShuffleSeeded(phrases, strings.Join(phrases, "\x00")), nil
}
