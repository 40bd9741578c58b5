package decision

import (
	"fmt"

	"fplpilot/internal/logger"
	"fplpilot/internal/pkg/jsonutil"
	"fplpilot/internal/prompt"
)

type Parser struct {
	Prompts *prompt.Registry
}

func NewParser(prompts *prompt.Registry) *Parser {
	return &Parser{Prompts: prompts}
}

func (p *Parser) document(kind prompt.Kind, raw string) (map[string]any, error) {
	block, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}
	logger.Debugf("[oracle] %s answer:\n%s", kind, jsonutil.Pretty(block))
	doc, err := coerceObject(block)
	if err != nil {
		return nil, err
	}
	if p.Prompts != nil {
		if err := p.Prompts.Validate(kind, doc); err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
	}
	return doc, nil
}

// ParseDraft never fails; an unusable answer comes back as a malformed proposal.
func (p *Parser) ParseDraft(raw string) DraftProposal {
	out := DraftProposal{Raw: raw}
	doc, err := p.document(prompt.KindDraft, raw)
	if err != nil {
		out.Status = StatusMalformed
		out.Problem = err.Error()
		return out
	}
	r := docReader{doc: doc}
	out.SquadIDs = r.ids("squad_ids")
	out.CaptainID = r.id("captain_id")
	if r.err != nil {
		return DraftProposal{Raw: raw, Status: StatusMalformed, Problem: r.err.Error()}
	}
	out.Status = StatusWellFormed
	out.Reason = docString(doc, "reason")
	return out
}

// ParseWeek never fails; an unusable answer comes back as a malformed proposal.
func (p *Parser) ParseWeek(raw string) WeekProposal {
	out := WeekProposal{Raw: raw}
	doc, err := p.document(prompt.KindWeek, raw)
	if err != nil {
		out.Status = StatusMalformed
		out.Problem = err.Error()
		return out
	}
	r := docReader{doc: doc}
	out.Made = docBool(doc, "made")
	if out.Made {
		out.OutID = r.id("out_id")
		out.InID = r.id("in_id")
	}
	out.XI = r.ids("xi_ids")
	out.Bench = r.ids("bench_order")
	out.CaptainID = r.id("captain_id")
	if r.err != nil {
		return WeekProposal{Raw: raw, Status: StatusMalformed, Problem: r.err.Error()}
	}
	out.Status = StatusWellFormed
	out.Chip = docString(doc, "chip")
	out.Reason = docString(doc, "reason")
	return out
}
