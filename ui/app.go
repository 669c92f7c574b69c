package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"seekchat/chat"
	"seekchat/config"
	"seekchat/model"
)

// ChatService runs user turns.
type ChatService interface {
	Prepare(ctx context.Context, sessionID int64, text string, p model.ProviderConfig, m model.ModelConfig) (*chat.Turn, error)
	Run(ctx context.Context, turn *chat.Turn, onUpdate func(chat.Update)) error
	Stop(messageID int64) bool
}

// SessionStore is the session persistence the UI reads and edits.
type SessionStore interface {
	CreateSession(ctx context.Context, name string) (model.Session, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	GetSession(ctx context.Context, id int64) (model.Session, error)
	GetMessages(ctx context.Context, sessionID int64) ([]model.StoredMessage, error)
	UpdateSessionMetadata(ctx context.Context, id int64, metadata string) error
}

// ToolLister reports the tools of the active MCP servers.
type ToolLister interface {
	ListActiveTools(ctx context.Context) ([]model.ToolDescriptor, error)
}

// Deps are the services the UI drives.
type Deps struct {
	Config  *config.Config
	Store   SessionStore
	Chat    ChatService
	Tools   ToolLister
	Version string
}

type renderedMarkdown struct {
	Source   string
	Width    int
	Rendered string
}

// App is the root bubbletea model.
type App struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	selector modelSelector

	width  int
	height int
	ready  bool

	session  model.Session
	settings model.SessionSettings
	messages []model.StoredMessage
	markdown map[int64]renderedMarkdown

	providerID string
	modelID    string
	generating int64

	notice    string
	noticeErr bool
	panel     string
}

// New builds the UI around deps.
func New(deps Deps) App {
	ctx, cancel := context.WithCancel(context.Background())

	input := textarea.New()
	input.Placeholder = "Type a message, or /help"
	input.ShowLineNumbers = false
	input.Prompt = "> "
	input.CharLimit = 0
	input.SetHeight(3)
	input.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = AssistantStyle

	selector := newModelSelector()
	a := App{
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		input:    input,
		spinner:  s,
		selector: selector,
		settings: model.DefaultSessionSettings(),
		markdown: make(map[int64]renderedMarkdown),
	}
	if deps.Config != nil {
		a.providerID = deps.Config.DefaultProvider
		a.modelID = deps.Config.DefaultModel
		a.selector.setOptions(configuredOptions(deps.Config))
	}
	return a
}

func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, a.spinner.Tick}
	if a.deps.Store != nil {
		defaults := config.SessionDefaults{Temperature: model.DefaultTemperature, ContextLength: model.DefaultContextLength}
		if a.deps.Config != nil {
			defaults = a.deps.Config.Session
		}
		cmds = append(cmds, openLatestSession(a.ctx, a.deps.Store, defaults))
	}
	if a.deps.Config != nil {
		cmds = append(cmds, listModels(a.ctx, listableProviders(a.deps.Config)))
	}
	return tea.Batch(cmds...)
}

// listableProviders resolves the enabled providers for model discovery.
func listableProviders(cfg *config.Config) []model.ProviderConfig {
	var out []model.ProviderConfig
	for _, p := range cfg.EnabledProviders() {
		out = append(out, model.ProviderConfig{
			ID:      p.ID,
			Name:    p.Name,
			BaseURL: p.BaseURL,
			APIKey:  cfg.APIKey(p.ID),
		})
	}
	return out
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		a.refresh()
		return a, tea.Batch(a.markdownCmds()...)

	case tea.KeyMsg:
		if a.selector.visible {
			return a.updateSelector(msg)
		}
		return a.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		if a.generating != 0 {
			a.refresh()
		}
		return a, cmd

	case sessionLoadedMsg:
		a.session = msg.Session
		a.settings = model.ParseSessionSettings(msg.Session.Metadata)
		a.messages = msg.Messages
		a.refresh()
		a.viewport.GotoBottom()
		return a, tea.Batch(a.markdownCmds()...)

	case sessionsListedMsg:
		a.panel = formatSessions(msg.Sessions, a.session.ID)
		a.refresh()
		a.viewport.GotoBottom()

	case settingsSavedMsg:
		a.session.Metadata = msg.Metadata
		a.settings = model.ParseSessionSettings(msg.Metadata)
		a.setNotice(msg.Notice, false)

	case turnStartedMsg:
		a.messages = append(a.messages, msg.Turn.User, msg.Turn.Assistant)
		a.generating = msg.Turn.Assistant.ID
		a.refresh()
		a.viewport.GotoBottom()
		return a, waitForUpdate(msg.Turn.Assistant.ID, msg.Updates)

	case chatUpdateMsg:
		a.applyUpdate(msg.Update)
		return a, waitForUpdate(msg.Update.MessageID, msg.Updates)

	case generationDoneMsg:
		if a.generating == msg.MessageID {
			a.generating = 0
		}
		if a.session.ID != 0 && a.deps.Store != nil {
			return a, loadSession(a.ctx, a.deps.Store, a.session.ID)
		}

	case modelsListedMsg:
		if msg.Err != nil {
			config.DebugLog.Debug("model listing failed", "provider", msg.ProviderID, "error", msg.Err)
			return a, nil
		}
		a.selector.merge(msg.ProviderID, msg.Models)

	case toolsListedMsg:
		if msg.Err != nil {
			a.setNotice(fmt.Sprintf("Failed to list tools: %v", msg.Err), true)
			return a, nil
		}
		a.panel = formatTools(msg.Tools)
		a.refresh()
		a.viewport.GotoBottom()

	case pingResultMsg:
		if msg.Err != nil {
			a.setNotice(fmt.Sprintf("%s: %v", msg.ProviderID, msg.Err), true)
		} else {
			a.setNotice(fmt.Sprintf("%s is reachable", msg.ProviderID), false)
		}

	case markdownRenderedMsg:
		if msg.Width == a.contentWidth() {
			a.markdown[msg.MessageID] = renderedMarkdown{Source: msg.Source, Width: msg.Width, Rendered: msg.Rendered}
			a.refresh()
		}

	case noticeMsg:
		a.setNotice(msg.Text, msg.Error)

	case errMsg:
		a.setNotice(msg.Err.Error(), true)
	}
	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		a.cancel()
		return a, tea.Quit
	case "esc":
		if a.generating != 0 && a.deps.Chat != nil {
			if a.deps.Chat.Stop(a.generating) {
				a.setNotice("Stopping...", false)
			}
			return a, nil
		}
		a.panel = ""
		a.notice = ""
		a.refresh()
		return a, nil
	case "ctrl+y":
		return a, copyToClipboard(a.lastReply())
	case "ctrl+o":
		a.selector.open("")
		return a, nil
	case "enter":
		return a.submit()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a App) updateSelector(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		a.cancel()
		return a, tea.Quit
	case "esc":
		a.selector.close()
		return a, nil
	case "up", "ctrl+p":
		a.selector.move(-1)
		return a, nil
	case "down", "ctrl+n":
		a.selector.move(1)
		return a, nil
	case "enter":
		o, ok := a.selector.current()
		a.selector.close()
		if !ok {
			return a, nil
		}
		return a.selectModel(o.ProviderID, o.ModelID)
	}
	var cmd tea.Cmd
	a.selector.filter, cmd = a.selector.filter.Update(msg)
	a.selector.applyFilter()
	return a, cmd
}

func (a App) selectModel(providerID, modelID string) (tea.Model, tea.Cmd) {
	a.providerID = providerID
	a.modelID = modelID
	if a.deps.Config == nil {
		return a, nil
	}
	return a, persistDefaultModel(a.deps.Config, providerID, modelID)
}

func (a App) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(a.input.Value())
	if text == "" {
		return a, nil
	}
	if cmd, ok := parseCommand(text); ok {
		a.input.Reset()
		return a.runCommand(cmd)
	}
	// "//" escapes a leading slash.
	if strings.HasPrefix(text, "//") {
		text = text[1:]
	}

	if a.generating != 0 {
		a.setNotice("Wait for the reply to finish or press Esc to stop it", true)
		return a, nil
	}
	if a.session.ID == 0 || a.deps.Chat == nil || a.deps.Config == nil {
		a.setNotice("No session loaded", true)
		return a, nil
	}
	p, m, err := a.deps.Config.ResolveProvider(a.providerID, a.modelID)
	if err != nil {
		a.setNotice(err.Error(), true)
		return a, nil
	}

	a.input.Reset()
	a.panel = ""
	a.notice = ""
	return a, startTurn(a.ctx, a.deps.Chat, a.session.ID, text, p, m)
}

func (a App) runCommand(c command) (tea.Model, tea.Cmd) {
	switch c.Name {
	case "new":
		name := strings.Join(c.Args, " ")
		if name == "" {
			name = "New Session"
		}
		return a, createSession(a.ctx, a.deps.Store, name, a.sessionDefaults())
	case "sessions":
		return a, listSessions(a.ctx, a.deps.Store)
	case "open":
		if len(c.Args) != 1 {
			a.setNotice("usage: /open <id>", true)
			return a, nil
		}
		id, err := strconv.ParseInt(c.Args[0], 10, 64)
		if err != nil {
			a.setNotice(fmt.Sprintf("invalid session id: %q", c.Args[0]), true)
			return a, nil
		}
		return a, loadSession(a.ctx, a.deps.Store, id)
	case "model":
		if len(c.Args) == 0 {
			a.selector.open("")
			return a, nil
		}
		providerID, modelID, err := parseModelRef(c.Args[0])
		if err != nil {
			a.selector.open(c.Args[0])
			return a, nil
		}
		return a.selectModel(providerID, modelID)
	case "temp", "temperature":
		if len(c.Args) != 1 {
			a.setNotice(fmt.Sprintf("temperature is %.2g", a.settings.Temperature), false)
			return a, nil
		}
		t, err := parseTemperature(c.Args[0])
		if err != nil {
			a.setNotice(err.Error(), true)
			return a, nil
		}
		return a, saveSetting(a.ctx, a.deps.Store, a.session, "temperature", t, fmt.Sprintf("Temperature set to %.2g", t))
	case "context":
		if len(c.Args) != 1 {
			a.setNotice("context is "+contextLabel(a.settings), false)
			return a, nil
		}
		n, err := parseContextLength(c.Args[0])
		if err != nil {
			a.setNotice(err.Error(), true)
			return a, nil
		}
		next := a.settings
		next.ContextLength = n
		return a, saveSetting(a.ctx, a.deps.Store, a.session, "contextLength", n, "Context set to "+contextLabel(next))
	case "tools":
		if a.deps.Tools == nil {
			a.setNotice("No tool servers configured", false)
			return a, nil
		}
		return a, listTools(a.ctx, a.deps.Tools)
	case "ping":
		p, _, err := a.deps.Config.ResolveProvider(a.providerID, a.modelID)
		if err != nil {
			a.setNotice(err.Error(), true)
			return a, nil
		}
		a.setNotice("Pinging "+p.ID+"...", false)
		return a, pingProvider(a.ctx, p)
	case "copy":
		return a, copyToClipboard(a.lastReply())
	case "help":
		a.panel = "SeekChat " + a.deps.Version + "\n\n" + helpText()
		a.refresh()
		a.viewport.GotoBottom()
		return a, nil
	case "quit", "exit":
		a.cancel()
		return a, tea.Quit
	}
	a.setNotice("unknown command: /"+c.Name, true)
	return a, nil
}

func (a App) sessionDefaults() config.SessionDefaults {
	if a.deps.Config != nil {
		return a.deps.Config.Session
	}
	return config.SessionDefaults{Temperature: model.DefaultTemperature, ContextLength: model.DefaultContextLength}
}

// applyUpdate rewrites the in-memory copy of the generating message.
func (a *App) applyUpdate(u chat.Update) {
	for i := range a.messages {
		if a.messages[i].ID != u.MessageID {
			continue
		}
		c := u.Completion
		content := c.Content
		if u.Status == model.StatusError && content == "" && u.Err != nil {
			content = u.Err.Error()
		}
		encoded, err := model.AssistantBlocks(content, c.ReasoningContent, c.ToolCallResults, u.Status).Encode()
		if err != nil {
			config.DebugLog.Debug("failed to encode update", "message", u.MessageID, "error", err)
			return
		}
		a.messages[i].Content = encoded
		a.messages[i].Status = u.Status
		break
	}
	a.refresh()
	a.viewport.GotoBottom()
}

func (a App) lastReply() string {
	for i := len(a.messages) - 1; i >= 0; i-- {
		if a.messages[i].Role == model.RoleAssistant {
			return a.messages[i].Blocks().Text()
		}
	}
	return ""
}

func (a *App) setNotice(text string, isErr bool) {
	a.notice = text
	a.noticeErr = isErr
}

func (a App) contentWidth() int {
	return max(a.width-2, 20)
}

func (a *App) resize(width, height int) {
	a.width = width
	a.height = height
	a.input.SetWidth(width)
	// header, notice, footer and the three input rows.
	vpHeight := max(height-6, 3)
	if !a.ready {
		a.viewport = viewport.New(width, vpHeight)
		a.ready = true
	} else {
		a.viewport.Width = width
		a.viewport.Height = vpHeight
	}
}

// markdownCmds requests renders for settled replies without a current one.
func (a App) markdownCmds() []tea.Cmd {
	if !a.ready {
		return nil
	}
	width := a.contentWidth()
	var cmds []tea.Cmd
	for _, m := range a.messages {
		if m.Role != model.RoleAssistant || m.Status != model.StatusSuccess {
			continue
		}
		source := m.Blocks().Text()
		if source == "" {
			continue
		}
		if r, ok := a.markdown[m.ID]; ok && r.Source == source && r.Width == width {
			continue
		}
		cmds = append(cmds, renderMarkdownAsync(m.ID, source, width))
	}
	return cmds
}

func (a *App) refresh() {
	if !a.ready {
		return
	}
	a.viewport.SetContent(a.renderConversation())
}

func (a App) renderConversation() string {
	width := a.contentWidth()
	var b strings.Builder
	if len(a.messages) == 0 && a.panel == "" {
		b.WriteString(DimStyle.Render("No messages yet. Type below to start, or /help for commands."))
		b.WriteString("\n")
	}
	for _, m := range a.messages {
		opts := renderOptions{Width: width, Spinner: a.spinner.View()}
		if r, ok := a.markdown[m.ID]; ok && r.Width == width && r.Source == m.Blocks().Text() {
			opts.Markdown = r.Rendered
		}
		b.WriteString(renderMessage(m, opts))
	}
	if a.panel != "" {
		b.WriteString(a.panel)
		b.WriteString("\n")
	}
	return b.String()
}

func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	if a.selector.visible {
		return a.selector.view(a.width, a.height, a.providerID+"/"+a.modelID)
	}

	notice := ""
	if a.notice != "" {
		if a.noticeErr {
			notice = ErrorStyle.Render(truncate(a.notice, a.width))
		} else {
			notice = StatusStyle.Render(truncate(a.notice, a.width))
		}
	}
	footer := FormatFooter("Enter", "Send", "Esc", "Stop", "Ctrl+O", "Model", "Ctrl+Y", "Copy", "Ctrl+C", "Quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		a.header(),
		a.viewport.View(),
		notice,
		a.input.View(),
		footer,
	)
}

func (a App) header() string {
	name := a.session.Name
	if name == "" {
		name = "SeekChat"
	}
	modelLabel := "no model"
	if a.providerID != "" && a.modelID != "" {
		modelLabel = a.providerID + "/" + a.modelID
	}
	right := DimStyle.Render(fmt.Sprintf("%s  temp %.2g  ctx %s", modelLabel, a.settings.Temperature, contextLabel(a.settings)))
	left := TitleStyle.Render(truncate(name, max(a.width-lipgloss.Width(right)-2, 10)))
	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func contextLabel(s model.SessionSettings) string {
	w := s.Window()
	if w.NoLimit {
		return "all"
	}
	return strconv.Itoa(w.MaxMessages)
}

func formatSessions(sessions []model.Session, current int64) string {
	if len(sessions) == 0 {
		return DimStyle.Render("No sessions")
	}
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Sessions") + "\n")
	for _, s := range sessions {
		marker := "  "
		if s.ID == current {
			marker = HighlightStyle.Render("• ")
		}
		fmt.Fprintf(&b, "%s%-5d %s %s\n", marker, s.ID, s.Name, DimStyle.Render(s.UpdatedAt.Format("2006-01-02 15:04")))
	}
	b.WriteString(DimStyle.Render("/open <id> to switch"))
	return b.String()
}

func formatTools(tools []model.ToolDescriptor) string {
	if len(tools) == 0 {
		return DimStyle.Render("No tools available from active servers")
	}
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Tools") + "\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "%s %s %s\n", ToolStyle.Render(t.ServerName), t.Name, DimStyle.Render(truncate(t.Description, 60)))
	}
	return b.String()
}
