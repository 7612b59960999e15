package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/xkilldash9x/cadence/internal/automator"
	"github.com/xkilldash9x/cadence/internal/page"
	"gopkg.in/yaml.v3"
)

// Step kinds in a plan file.
const (
	kindButton = "button"
	kindLink   = "link"
)

// Confirm answers a button step can give.
const (
	confirmOK     = "ok"
	confirmCancel = "cancel"
)

// PlanFile is the on-disk description of a run: which page to open, the
// named selectors on it and the steps to repeat.
type PlanFile struct {
	URL       string            `yaml:"url"`
	Page      string            `yaml:"page"`
	Selectors map[string]string `yaml:"selectors"`
	Steps     []PlanStep        `yaml:"steps"`
	Repeat    int               `yaml:"repeat"`
}

// PlanStep names a registered element and the action counted for it.
// Buttons record the action in the journal; links only count it. Frame
// names a registered iframe holding the target. Confirm answers the confirm
// dialog a button opens.
type PlanStep struct {
	Action  string `yaml:"action"`
	Target  string `yaml:"target"`
	Kind    string `yaml:"kind"`
	Frame   string `yaml:"frame"`
	Confirm string `yaml:"confirm"`
}

// loadPlanFile reads and validates a YAML plan.
func loadPlanFile(fs afero.Fs, path string) (*PlanFile, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan %s: %w", path, err)
	}
	var pf PlanFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse plan %s: %w", path, err)
	}
	if err := pf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return &pf, nil
}

// Validate checks the plan for missing or unknown references.
func (pf *PlanFile) Validate() error {
	if pf.Page == "" {
		pf.Page = "page"
	}
	if len(pf.Steps) == 0 {
		return fmt.Errorf("no steps defined")
	}
	if pf.Repeat < 0 {
		return fmt.Errorf("repeat must not be negative")
	}
	for i := range pf.Steps {
		st := &pf.Steps[i]
		st.Kind = strings.ToLower(st.Kind)
		if st.Kind == "" {
			st.Kind = kindButton
		}
		if st.Kind != kindButton && st.Kind != kindLink {
			return fmt.Errorf("steps[%d]: unknown kind %q", i, st.Kind)
		}
		if st.Target == "" {
			return fmt.Errorf("steps[%d]: target is required", i)
		}
		if _, ok := pf.Selectors[st.Target]; !ok {
			return fmt.Errorf("steps[%d]: target %q has no selector", i, st.Target)
		}
		if st.Frame != "" {
			if _, ok := pf.Selectors[st.Frame]; !ok {
				return fmt.Errorf("steps[%d]: frame %q has no selector", i, st.Frame)
			}
		}
		st.Confirm = strings.ToLower(st.Confirm)
		switch st.Confirm {
		case "":
		case confirmOK, confirmCancel:
			if st.Kind != kindButton {
				return fmt.Errorf("steps[%d]: confirm is only supported on buttons", i)
			}
		default:
			return fmt.Errorf("steps[%d]: confirm must be %q or %q, got %q", i, confirmOK, confirmCancel, st.Confirm)
		}
		if st.Action == "" {
			st.Action = st.Target
		}
	}
	return nil
}

// buildPlan resolves every step against pg. Each distinct target must appear
// within timeout; targets inside a frame wait for the frame first.
func buildPlan(ctx context.Context, pg *page.Page, pf *PlanFile, timeout time.Duration) (automator.Plan, error) {
	plan := automator.Plan{Repeat: pf.Repeat}
	seen := make(map[[2]string]bool)
	for _, st := range pf.Steps {
		key := [2]string{st.Frame, st.Target}
		if !seen[key] {
			var err error
			if st.Frame != "" {
				_, err = pg.WaitForInFrame(ctx, st.Frame, st.Target, timeout)
			} else {
				_, err = pg.WaitFor(ctx, st.Target, timeout)
			}
			if err != nil {
				return automator.Plan{}, err
			}
			seen[key] = true
		}

		target, err := resolveStep(pg, st)
		if err != nil {
			return automator.Plan{}, err
		}
		plan.Steps = append(plan.Steps, automator.Step{Action: st.Action, Target: target})
	}
	return plan, nil
}

func resolveStep(pg *page.Page, st PlanStep) (page.Clickable, error) {
	if st.Kind == kindLink {
		if st.Frame != "" {
			return pg.FrameLink(st.Frame, st.Target)
		}
		return pg.Link(st.Target)
	}

	var btn *page.Button
	var err error
	if st.Frame != "" {
		btn, err = pg.FrameButton(st.Frame, st.Target, st.Action)
	} else {
		btn, err = pg.Button(st.Target, st.Action)
	}
	if err != nil {
		return nil, err
	}
	if st.Confirm != "" {
		if err := pg.ExpectConfirm(btn, st.Confirm == confirmOK); err != nil {
			return nil, err
		}
	}
	return btn, nil
}
