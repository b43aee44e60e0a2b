// Package model serializes fitted regressors into transport-safe tokens.
//
// A token is the URL-safe base64 encoding of a versioned JSON envelope that carries
// exactly one of the supported model kinds. Loading never fails loudly: any problem
// yields a nil model and the caller falls back to the baseline.
package model

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cashcast/internal/core"
	"cashcast/internal/regress"
)

const envelopeVersion = 1

var ErrUnsupportedModel = errors.New("unsupported model type")

type envelope struct {
	Version int              `json:"v"`
	Kind    core.Algo        `json:"kind"`
	Linear  *regress.Linear  `json:"linear,omitempty"`
	Boosted *regress.Boosted `json:"boosted,omitempty"`
}

// Save encodes m. A nil model encodes to the empty token.
func Save(m regress.Model) (string, error) {
	env := envelope{Version: envelopeVersion}
	switch v := m.(type) {
	case nil:
		return "", nil
	case *regress.Linear:
		if v == nil {
			return "", nil
		}
		env.Kind, env.Linear = core.AlgoLinear, v
	case *regress.Boosted:
		if v == nil {
			return "", nil
		}
		env.Kind, env.Boosted = core.AlgoBoosted, v
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedModel, m)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal model envelope: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Load decodes a token produced by Save. It returns nil for an empty token and for
// any token that does not decode to a structurally valid model.
func Load(token string) regress.Model {
	m, _ := Decode(token)
	return m
}

// Decode is Load with the reason for a failed decode. It never panics.
func Decode(token string) (m regress.Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("decode model: %v", r)
		}
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		// Tokens written with the standard alphabet are still accepted.
		if raw, err = base64.StdEncoding.DecodeString(token); err != nil {
			return nil, fmt.Errorf("decode model base64: %w", err)
		}
	}

	var env envelope
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode model envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported model envelope version %d", env.Version)
	}

	switch env.Kind {
	case core.AlgoLinear:
		if env.Linear == nil || env.Boosted != nil {
			return nil, errors.New("linear envelope without linear parameters")
		}
		if err := env.Linear.Validate(); err != nil {
			return nil, fmt.Errorf("invalid linear model: %w", err)
		}
		return env.Linear, nil
	case core.AlgoBoosted:
		if env.Boosted == nil || env.Linear != nil {
			return nil, errors.New("boosted envelope without boosted parameters")
		}
		if err := env.Boosted.Validate(); err != nil {
			return nil, fmt.Errorf("invalid boosted model: %w", err)
		}
		return env.Boosted, nil
	}
	return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedModel, env.Kind)
}
