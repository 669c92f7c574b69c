package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/sahilm/fuzzy"

	"seekchat/config"
	"seekchat/model"
)

// modelOption is one selectable provider/model pair.
type modelOption struct {
	ProviderID string
	ModelID    string
	Name       string
}

func (o modelOption) label() string {
	return o.ProviderID + "/" + o.ModelID
}

// modelSelector is the fuzzy model picker.
type modelSelector struct {
	visible  bool
	options  []modelOption
	filtered []modelOption
	selected int
	filter   textinput.Model
}

func newModelSelector() modelSelector {
	filter := textinput.New()
	filter.Prompt = "Filter: "
	filter.CharLimit = 64
	return modelSelector{filter: filter}
}

// configuredOptions lists the enabled models of enabled providers.
func configuredOptions(cfg *config.Config) []modelOption {
	var out []modelOption
	for _, p := range cfg.EnabledProviders() {
		for _, m := range p.Models {
			if m.Enabled {
				out = append(out, modelOption{ProviderID: p.ID, ModelID: m.ID, Name: m.Name})
			}
		}
	}
	return out
}

// merge adds discovered models, keeping the list sorted and unique.
func (s *modelSelector) merge(providerID string, models []model.ModelInfo) {
	added := make([]modelOption, 0, len(models))
	for _, m := range models {
		added = append(added, modelOption{ProviderID: providerID, ModelID: m.ID, Name: m.Name})
	}
	s.add(added)
}

func (s *modelSelector) setOptions(options []modelOption) {
	s.options = nil
	s.add(options)
}

func (s *modelSelector) add(options []modelOption) {
	seen := make(map[string]bool, len(s.options))
	for _, o := range s.options {
		seen[o.label()] = true
	}
	for _, o := range options {
		if !seen[o.label()] {
			seen[o.label()] = true
			s.options = append(s.options, o)
		}
	}
	sort.SliceStable(s.options, func(i, j int) bool {
		return s.options[i].label() < s.options[j].label()
	})
	s.applyFilter()
}

// open shows the selector, pre-filtered by query.
func (s *modelSelector) open(query string) {
	s.visible = true
	s.filter.SetValue(query)
	s.filter.Focus()
	s.selected = 0
	s.applyFilter()
}

func (s *modelSelector) close() {
	s.visible = false
	s.filter.Blur()
}

func (s *modelSelector) applyFilter() {
	query := strings.TrimSpace(s.filter.Value())
	if query == "" {
		s.filtered = s.options
	} else {
		targets := make([]string, len(s.options))
		for i, o := range s.options {
			targets[i] = o.label()
		}
		matches := fuzzy.Find(query, targets)
		s.filtered = make([]modelOption, len(matches))
		for i, match := range matches {
			s.filtered[i] = s.options[match.Index]
		}
	}
	if s.selected >= len(s.filtered) {
		s.selected = max(len(s.filtered)-1, 0)
	}
}

func (s *modelSelector) move(delta int) {
	if len(s.filtered) == 0 {
		return
	}
	s.selected = min(max(s.selected+delta, 0), len(s.filtered)-1)
}

// current returns the highlighted option.
func (s *modelSelector) current() (modelOption, bool) {
	if s.selected < 0 || s.selected >= len(s.filtered) {
		return modelOption{}, false
	}
	return s.filtered[s.selected], true
}

func (s modelSelector) view(width, height int, currentLabel string) string {
	modalWidth := 60
	listHeight := max(height-12, 3)

	lines := []string{s.filter.View(), ""}
	if len(s.filtered) == 0 {
		lines = append(lines, DimStyle.Render("No models match"))
	}
	start := 0
	if s.selected >= listHeight {
		start = s.selected - listHeight + 1
	}
	for i := start; i < len(s.filtered) && i < start+listHeight; i++ {
		o := s.filtered[i]
		label := truncate(o.label(), modalWidth-6)
		marker := "  "
		if o.label() == currentLabel {
			marker = "• "
		}
		if i == s.selected {
			lines = append(lines, SelectedStyle.Render("> "+marker+label))
		} else {
			lines = append(lines, "  "+marker+label)
		}
	}

	footer := FormatFooter("↑/↓", "Navigate", "Enter", "Select", "Esc", "Close")
	return renderModal("Select Model", lines, footer, ModalTypeInfo, modalWidth, width, height)
}
