package testutil

import "ct-go/internal/ct"

// ScriptedPrompter answers prompts from fixed settings and records what it was asked.
type ScriptedPrompter struct {
	// Confirm is the answer to every ConfirmYesNo.
	Confirm bool
	// AcceptSuffix controls whether proposed names are accepted.
	AcceptSuffix bool
	// Rename, when set, replaces the proposed name on acceptance.
	Rename string
	// Directory is returned by ChooseDirectory; empty means none.
	Directory string

	Confirmations []string
	Proposals     []string
	Errors        []string
}

// NewScriptedPrompter returns a prompter that confirms and accepts everything.
func NewScriptedPrompter() *ScriptedPrompter {
	return &ScriptedPrompter{Confirm: true, AcceptSuffix: true}
}

func (p *ScriptedPrompter) ConfirmYesNo(prompt string) bool {
	p.Confirmations = append(p.Confirmations, prompt)
	return p.Confirm
}

func (p *ScriptedPrompter) AcceptSuffixedName(proposed string) (string, bool) {
	p.Proposals = append(p.Proposals, proposed)
	if !p.AcceptSuffix {
		return "", false
	}
	if p.Rename != "" {
		return p.Rename, true
	}
	return proposed, true
}

func (p *ScriptedPrompter) ReportError(message string) {
	p.Errors = append(p.Errors, message)
}

func (p *ScriptedPrompter) ChooseDirectory() (string, bool) {
	return p.Directory, p.Directory != ""
}

var _ ct.Prompter = (*ScriptedPrompter)(nil)
