package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wippyai/wasmgen"
	"github.com/wippyai/wasmgen/config"
	"github.com/wippyai/wasmgen/wasm"
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Browse generated modules seed by seed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		seed, _ := cmd.Flags().GetUint64("seed")
		p := tea.NewProgram(newExploreModel(seed), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	exploreCmd.Flags().Uint64("seed", 0, "initial seed")
}

var explorePresets = []string{"default", "core2", "gc"}

type exploreState int

const (
	stateBrowse exploreState = iota
	stateSeedInput
)

type exploreModel struct {
	err     error
	module  *wasm.Module
	status  string
	input   textinput.Model
	size    int
	seed    uint64
	preset  int
	state   exploreState
	pending bool
}

type generatedMsg struct {
	err    error
	module *wasm.Module
	seed   uint64
	size   int
}

type savedMsg struct {
	err  error
	path string
}

func newExploreModel(seed uint64) *exploreModel {
	ti := textinput.New()
	ti.Prompt = "seed: "
	ti.Placeholder = "number"
	ti.Width = 24
	return &exploreModel{seed: seed, input: ti}
}

func (m *exploreModel) Init() tea.Cmd {
	return generateCmd(m.preset, m.seed)
}

func presetConfig(preset int) config.Config {
	cfg, _ := config.Preset(explorePresets[preset])
	return cfg
}

// generateCmd captures its inputs since commands run outside Update.
func generateCmd(preset int, seed uint64) tea.Cmd {
	return func() tea.Msg {
		bin, err := wasmgen.Generate(presetConfig(preset), seed)
		if err != nil {
			return generatedMsg{seed: seed, err: err}
		}
		mod, err := wasm.ParseModule(bin)
		return generatedMsg{seed: seed, module: mod, size: len(bin), err: err}
	}
}

func saveCmd(preset int, seed uint64) tea.Cmd {
	return func() tea.Msg {
		bin, err := wasmgen.Generate(presetConfig(preset), seed)
		if err != nil {
			return savedMsg{err: err}
		}
		path := fmt.Sprintf("%s-%d.wasm", explorePresets[preset], seed)
		return savedMsg{path: path, err: os.WriteFile(path, bin, 0o644)}
	}
}

func (m *exploreModel) regenerate() (tea.Model, tea.Cmd) {
	m.pending = true
	m.status = ""
	return m, generateCmd(m.preset, m.seed)
}

func (m *exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateSeedInput {
			return m.updateSeedInput(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "right", "l", "n":
			m.seed++
			return m.regenerate()
		case "left", "h", "p":
			if m.seed > 0 {
				m.seed--
				return m.regenerate()
			}
		case "tab":
			m.preset = (m.preset + 1) % len(explorePresets)
			return m.regenerate()
		case "s":
			m.state = stateSeedInput
			m.input.SetValue("")
			m.input.Focus()
			return m, textinput.Blink
		case "w":
			return m, saveCmd(m.preset, m.seed)
		}

	case generatedMsg:
		if msg.seed != m.seed {
			return m, nil
		}
		m.pending = false
		m.err = msg.err
		m.module = msg.module
		m.size = msg.size

	case savedMsg:
		if msg.err != nil {
			m.status = errorStyle.Render("save failed: " + msg.err.Error())
		} else {
			m.status = nameStyle.Render("wrote " + msg.path)
		}
	}
	return m, nil
}

func (m *exploreModel) updateSeedInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = stateBrowse
		m.input.Blur()
		return m, nil
	case "enter":
		m.state = stateBrowse
		m.input.Blur()
		seed, err := strconv.ParseUint(strings.TrimSpace(m.input.Value()), 10, 64)
		if err != nil {
			m.status = errorStyle.Render("not a seed: " + m.input.Value())
			return m, nil
		}
		m.seed = seed
		return m.regenerate()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *exploreModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("wasmgen explore"))
	b.WriteString(fmt.Sprintf(" seed %d, preset %s\n\n", m.seed, nameStyle.Render(explorePresets[m.preset])))

	switch {
	case m.pending && m.module == nil:
		b.WriteString("Generating...\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	case m.module != nil:
		b.WriteString(renderSummary(m.module, m.size))
	}

	b.WriteString("\n")
	if m.state == stateSeedInput {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter go • esc cancel"))
		return b.String()
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("←/→ seed • s jump • tab preset • w write • q quit"))
	return b.String()
}
