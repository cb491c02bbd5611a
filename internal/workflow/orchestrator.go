package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docpilot/internal/history"
	"docpilot/internal/logging"
	"docpilot/internal/types"
)

// emptyUtterancePrompt substitutes for a blank utterance at the input
// stage.
const emptyUtterancePrompt = "Please provide a question about the documentation."

// Stage enumerates the states of the per-turn machine.
type Stage int

const (
	StageInput Stage = iota
	StageIntent
	StageRoute
	StageContextBuild
	StageRetrieval
	StageClarification
	StageSynthesis
	StagePostProcess
	StageMemory
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageInput:
		return "input"
	case StageIntent:
		return "intent"
	case StageRoute:
		return "route"
	case StageContextBuild:
		return "context_build"
	case StageRetrieval:
		return "retrieval"
	case StageClarification:
		return "clarification"
	case StageSynthesis:
		return "synthesis"
	case StagePostProcess:
		return "post_process"
	case StageMemory:
		return "memory"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Orchestrator sequences the per-turn pipeline. Each turn creates one
// ConversationState, threads it through the stages, and discards it; no
// state survives the turn except the appended history record.
type Orchestrator struct {
	classifier     *Classifier
	contextBuilder *ContextBuilder
	aggregator     *Aggregator
	synthesizer    *Synthesizer
	history        history.Store
}

// NewOrchestrator wires the stage components together. All dependencies
// are injected; the orchestrator owns none of their lifecycles.
func NewOrchestrator(classifier *Classifier, contextBuilder *ContextBuilder, aggregator *Aggregator, synthesizer *Synthesizer, hist history.Store) *Orchestrator {
	return &Orchestrator{
		classifier:     classifier,
		contextBuilder: contextBuilder,
		aggregator:     aggregator,
		synthesizer:    synthesizer,
		history:        hist,
	}
}

// Ask runs one conversation turn through the state machine and returns a
// well-formed answer object. Collaborator failures degrade the result but
// never abort the turn.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, userID, utterance string) (types.AskResult, error) {
	timer := logging.StartTimer(logging.CategoryWorkflow, "Ask")
	defer timer.Stop()

	turns, err := o.history.List(ctx, sessionID, 0)
	if err != nil {
		logging.Get(logging.CategoryWorkflow).Warn("History load failed for session %s, starting empty: %v", sessionID, err)
		turns = nil
	}

	state := &types.ConversationState{
		SessionID:         sessionID,
		UserID:            userID,
		CurrentUtterance:  utterance,
		OriginalUtterance: utterance,
		History:           turns,
	}

	for stage := StageInput; stage != StageDone; {
		next := o.advance(ctx, state, stage)
		logging.WorkflowDebug("Session %s: %s -> %s", sessionID, stage, next)
		stage = next
	}

	if state.NeedsClarification && state.ClarificationQuestion == "" {
		// Invariant violation; every path that sets the flag also sets
		// the question.
		return types.AskResult{}, fmt.Errorf("needs clarification without a clarification question")
	}

	return types.AskResult{
		SessionID:          sessionID,
		Answer:             state.FinalAnswer(),
		Intent:             state.Intent,
		Confidence:         state.Confidence,
		NeedsClarification: state.NeedsClarification,
		FragmentCount:      len(state.Fragments),
		Sources:            state.Sources(),
	}, nil
}

// advance executes one stage against the state and returns the next
// stage. All side effects are confined to the state object and, at the
// memory stage, the history store.
func (o *Orchestrator) advance(ctx context.Context, state *types.ConversationState, stage Stage) Stage {
	switch stage {
	case StageInput:
		if strings.TrimSpace(state.CurrentUtterance) == "" {
			state.CurrentUtterance = emptyUtterancePrompt
			state.OriginalUtterance = emptyUtterancePrompt
		}
		return StageIntent

	case StageIntent:
		state.Intent = o.classifier.Classify(ctx, state.CurrentUtterance, state.History)
		return StageRoute

	case StageRoute:
		return route(state.Intent)

	case StageContextBuild:
		// A follow-up with no usable history degrades to a general
		// question over the unmodified utterance.
		if prefix := o.contextBuilder.BuildContext(state.History); prefix != "" {
			state.CurrentUtterance = RewriteUtterance(prefix, state.CurrentUtterance)
		}
		state.Intent = types.IntentGeneralQuestion
		return StageRetrieval

	case StageRetrieval:
		state.Fragments, state.Confidence = o.aggregator.Retrieve(ctx, state.SessionID, state.CurrentUtterance, state.Intent)
		return StageSynthesis

	case StageClarification:
		state.NeedsClarification = true
		state.ClarificationQuestion = o.synthesizer.GenerateClarification(ctx, state.CurrentUtterance)
		return StageDone

	case StageSynthesis:
		o.synthesizer.Synthesize(ctx, state)
		return StagePostProcess

	case StagePostProcess:
		state.FormattedAnswer = Format(state.Answer)
		return StageMemory

	case StageMemory:
		turn := types.ConversationTurn{
			Utterance:  state.OriginalUtterance,
			Answer:     state.FinalAnswer(),
			Intent:     state.Intent,
			Confidence: state.Confidence,
			CreatedAt:  time.Now().UTC(),
		}
		if err := o.history.Append(ctx, state.SessionID, turn); err != nil {
			logging.Get(logging.CategoryWorkflow).Warn("History append failed for session %s: %v", state.SessionID, err)
		}
		return StageDone
	}
	return StageDone
}

// route maps an intent to the next stage. Pure function of the intent.
func route(intent types.Intent) Stage {
	switch intent {
	case types.IntentClarification:
		return StageClarification
	case types.IntentFollowUp:
		return StageContextBuild
	default:
		return StageRetrieval
	}
}
