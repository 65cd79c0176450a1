package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/smehubhq/payments-service/internal/models"
)

const (
	suffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffixLength   = 8
	minSuffixLen   = 6
)

// ReferenceGenerator produces external transaction references of the form
// {TAG}-{unixMilli}-{suffix}. The suffix comes from a CSPRNG-backed nanoid so
// two references generated in the same millisecond do not collide in practice;
// the transactions table unique constraint is the actual guarantee and callers
// retry generation on conflict.
type ReferenceGenerator struct {
	suffix func() string
	now    func() time.Time
}

func NewReferenceGenerator() (*ReferenceGenerator, error) {
	gen, err := nanoid.CustomASCII(suffixAlphabet, suffixLength)
	if err != nil {
		return nil, fmt.Errorf("init reference suffix generator: %w", err)
	}
	return &ReferenceGenerator{suffix: gen, now: time.Now}, nil
}

func (g *ReferenceGenerator) Generate(t models.TransactionType) string {
	return fmt.Sprintf("%s-%d-%s", t.ReferencePrefix(), g.now().UnixMilli(), g.suffix())
}

// ParseReference validates the {TAG}-{millis}-{suffix} shape of a reference
// echoed back by the provider. It returns the type tag and whether the shape
// is valid; it does not check that the transaction exists.
func ParseReference(ref string) (tag string, ok bool) {
	parts := strings.SplitN(ref, "-", 3)
	if len(parts) != 3 {
		return "", false
	}
	tag, millis, suffix := parts[0], parts[1], parts[2]
	if len(tag) < 2 || len(tag) > 8 || !isUpperAlpha(tag) {
		return "", false
	}
	if len(millis) < 10 || !isDigits(millis) {
		return "", false
	}
	if len(suffix) < minSuffixLen || !isUpperAlnum(suffix) {
		return "", false
	}
	return tag, true
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isUpperAlnum(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
