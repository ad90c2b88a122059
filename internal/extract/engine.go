// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package extract implements the structured extraction state machine:
// generate, parse, validate, and one optional repair round. Parsing scans the
// model output for JSON objects; validation runs each candidate against the
// named schema and the first match wins.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelfront/gateway/internal/apierror"
	"github.com/modelfront/gateway/internal/schema"
)

// Failure stage labels, emitted on metrics and in the error extra.
const (
	StageParse          = "parse"
	StageValidate       = "validate"
	StageRepairParse    = "repair_parse"
	StageRepairValidate = "repair_validate"
)

// GenerateFunc produces one model completion for a synthesized prompt. The
// pipeline supplies a closure that binds the model and consults the
// completion cache.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// Result is a successful extraction.
type Result struct {
	Data            map[string]any
	RepairAttempted bool
}

// Engine runs extraction attempts against the schema registry.
type Engine struct {
	schemas *schema.Registry
}

// NewEngine creates an engine over the schema registry.
func NewEngine(schemas *schema.Registry) *Engine {
	return &Engine{schemas: schemas}
}

// Run executes one extraction attempt: generate, parse, validate, and when
// repair is enabled a single repair round applying the same rules. Schema
// errors (not found, load failed) surface before any model call.
func (e *Engine) Run(ctx context.Context, schemaID, text string, repair bool, generate GenerateFunc) (Result, error) {
	entry, err := e.schemas.Get(schemaID)
	if err != nil {
		return Result{}, err
	}
	schemaJSON, err := json.Marshal(entry.Raw)
	if err != nil {
		return Result{}, apierror.Internal(err)
	}

	output, err := generate(ctx, extractionPrompt(schemaJSON, text))
	if err != nil {
		return Result{}, err
	}

	data, failure := validateFirstMatching(entry, candidates(output))
	if failure == nil {
		return Result{Data: data}, nil
	}

	if !repair {
		return Result{}, withStage(failure, failure.stage)
	}

	repaired, err := generate(ctx, repairPrompt(schemaJSON, text, failure.stage, output))
	if err != nil {
		return Result{}, err
	}
	data, failure = validateFirstMatching(entry, candidates(repaired))
	if failure == nil {
		return Result{RepairAttempted: true, Data: data}, nil
	}
	switch failure.stage {
	case StageParse:
		failure.stage = StageRepairParse
	case StageValidate:
		failure.stage = StageRepairValidate
	}
	return Result{RepairAttempted: true}, withStage(failure, failure.stage)
}

// attemptFailure records why one parse/validate pass failed.
type attemptFailure struct {
	stage string
	// lastValidation holds the last candidate's validator errors, nil when
	// nothing parsed at all.
	lastValidation []string
}

// validateFirstMatching returns the first parsed object that passes schema
// validation. No parseable object means a parse failure; parseable objects
// that all fail validation mean a validate failure carrying the last
// validator's errors.
func validateFirstMatching(entry *schema.Entry, objs []map[string]any) (map[string]any, *attemptFailure) {
	if len(objs) == 0 {
		return nil, &attemptFailure{stage: StageParse}
	}
	var lastErrs []string
	for _, obj := range objs {
		if err := entry.Compiled.Validate(any(obj)); err != nil {
			lastErrs = schema.ValidationErrors(err)
			continue
		}
		return obj, nil
	}
	return nil, &attemptFailure{stage: StageValidate, lastValidation: lastErrs}
}

// withStage maps an attempt failure to its tagged client error.
func withStage(f *attemptFailure, stage string) error {
	switch stage {
	case StageParse, StageRepairParse:
		return apierror.New(apierror.CodeInvalidJSON, http.StatusUnprocessableEntity,
			"model output contained no parseable JSON object").
			WithExtra(map[string]any{"failure_stage": stage})
	default:
		return apierror.New(apierror.CodeSchemaValidationFailed, http.StatusUnprocessableEntity,
			"no candidate object passed schema validation").
			WithExtra(map[string]any{"failure_stage": stage, "errors": f.lastValidation})
	}
}

// extractionPrompt synthesizes the initial prompt. The model is asked to
// answer with a single object wrapped in the explicit delimiters, which the
// parser prefers.
func extractionPrompt(schemaJSON []byte, text string) string {
	return fmt.Sprintf(
		"Extract the fields described by this JSON Schema from the text below.\n"+
			"Respond with a single JSON object wrapped between %s and %s, with no other text.\n\n"+
			"JSON Schema:\n%s\n\nText:\n%s\n",
		DelimOpen, DelimClose, schemaJSON, text)
}

// repairPrompt synthesizes the second-round prompt after a failed attempt,
// naming the failure kind so the model can correct it.
func repairPrompt(schemaJSON []byte, text, failureStage, lastOutput string) string {
	reason := "the response was not a parseable JSON object"
	if failureStage == StageValidate {
		reason = "the JSON object did not conform to the schema"
	}
	return fmt.Sprintf(
		"Your previous response could not be used: %s.\n"+
			"Previous response:\n%s\n\n"+
			"Extract the fields described by this JSON Schema from the text below.\n"+
			"Respond with exactly one JSON object wrapped between %s and %s, with no other text.\n\n"+
			"JSON Schema:\n%s\n\nText:\n%s\n",
		reason, lastOutput, DelimOpen, DelimClose, schemaJSON, text)
}
