package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"

	"ollmui/chat"
	"ollmui/config"
	"ollmui/provider"
	"ollmui/rag"
	"ollmui/storage"
	"ollmui/tools"
)

const Version = "v0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	config.InitDebugLog(cfg.DataDir())

	store, err := storage.OpenStore(cfg.DatabasePath())
	if err != nil {
		fmt.Printf("Failed to open chat database: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	prefs, err := store.LoadPreferences(ctx)
	if err != nil {
		fmt.Printf("Failed to load preferences: %v\n", err)
		os.Exit(1)
	}

	backend, err := provider.NewProvider(provider.Config{
		Type:    provider.ProviderType(prefs[storage.PrefDefaultProvider]),
		BaseURL: providerBaseURL(cfg, prefs[storage.PrefDefaultProvider]),
		APIKey:  providerAPIKey(cfg, prefs[storage.PrefDefaultProvider]),
	})
	if err != nil {
		fmt.Printf("Failed to create provider: %v\n", err)
		os.Exit(1)
	}

	summarizer := &chat.ModelSummarizer{Provider: backend, Model: prefs[storage.PrefSummarizerModel]}

	embedder, err := rag.NewOllamaEmbedder(cfg.OllamaHost, prefs[storage.PrefEmbeddingModel])
	if err != nil {
		fmt.Printf("Failed to create embedder: %v\n", err)
		os.Exit(1)
	}

	var imageBackend tools.ImageBackend
	if cfg.ImageGenURL != "" {
		imageBackend = tools.NewComfyBackend(http.DefaultClient, cfg.ImageGenURL)
	}
	var searchBackend tools.SearchBackend
	if cfg.BraveAPIKey != "" {
		searchBackend = tools.NewBraveSearchBackend(http.DefaultClient, cfg.BraveAPIKey)
	}

	registry := tools.NewRegistry(config.DebugLog,
		tools.NewCalculatorTool(),
		tools.NewImageGenTool(imageBackend),
		tools.NewWebSearchTool(searchBackend),
		tools.NewWebFetchTool(http.DefaultClient, summarizer),
		tools.NewFileSearchTool(embedder, summarizer),
		tools.NewFileSummaryTool(summarizer),
	)

	engine := &chat.Engine{
		Provider:   backend,
		Registry:   registry,
		Embedder:   embedder,
		Extractors: rag.DefaultExtractors(rag.NewChunker(2000, 200)),
		Logger:     config.DebugLog,
	}

	manager, err := chat.NewManager(ctx, store, engine, chat.BuiltinInputTags(imageBackend, searchBackend), config.DebugLog)
	if err != nil {
		fmt.Printf("Failed to initialize chat manager: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	shell := &shell{manager: manager, session: manager.NewChat()}
	manager.OnUpdate = shell.render

	// Ctrl-C aborts the running generation instead of killing the shell.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range interrupts {
			shell.session.Abort()
		}
	}()

	fmt.Printf("ollmui %s — model %s. Type /help for commands.\n", Version, shell.session.Model())
	shell.loop(ctx)
}

func providerBaseURL(cfg *config.Config, providerID string) string {
	switch providerID {
	case "openai":
		return cfg.OpenAIBaseURL
	case "anthropic":
		return cfg.AnthropicBaseURL
	default:
		return cfg.OllamaHost
	}
}

func providerAPIKey(cfg *config.Config, providerID string) string {
	switch providerID {
	case "openai":
		return cfg.OpenAIAPIKey
	case "anthropic":
		return cfg.AnthropicAPIKey
	default:
		return ""
	}
}

// shell is the interactive command loop plus a streaming renderer fed by
// the manager's update hook.
type shell struct {
	manager *chat.Manager
	session *chat.Session

	pendingFiles []*chat.UserFile
	pendingTag   string

	// rendering cursor into the streaming assistant message
	renderedSubs  int
	renderedRunes int
}

func (sh *shell) loop(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if !sh.command(ctx, line) {
				return
			}
			continue
		}

		sh.send(ctx, line)
	}
}

// command runs one slash command; returns false to exit the shell.
func (sh *shell) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	arg := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch fields[0] {
	case "/help":
		fmt.Println(`Commands:
  /models              list available models
  /model <name>        switch the current chat to a model
  /chats               list saved chats
  /new                 start a new chat
  /open <n>            open saved chat n
  /delete <n>          delete saved chat n
  /regen               regenerate the last exchange
  /upload <path>       attach a file to the next message
  /tag <id>            set an input tag for the next message
  /translate <src> <dst> <text>   translate text
  /quit                exit`)

	case "/quit", "/exit":
		return false

	case "/models":
		models, err := sh.manager.ListModels(ctx)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		for _, model := range models {
			if model.Size > 0 {
				fmt.Printf("  %s (%s)\n", model.Name, humanize.Bytes(uint64(model.Size)))
			} else {
				fmt.Printf("  %s\n", model.Name)
			}
		}

	case "/model":
		if arg == "" {
			fmt.Printf("current model: %s\n", sh.session.Model())
			break
		}
		if err := sh.manager.SelectModel(ctx, sh.session, arg); err != nil {
			fmt.Printf("error: %v\n", err)
		}

	case "/chats":
		for i, session := range sh.manager.Sessions() {
			fmt.Printf("  %d: %s (%s)\n", i+1, session.Name(), session.Model())
		}

	case "/new":
		sh.session = sh.manager.NewChat()
		fmt.Println("started a new chat")

	case "/open":
		session := sh.sessionArg(arg)
		if session == nil {
			break
		}
		opened, err := sh.manager.OpenChat(ctx, session.ID)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		sh.session = opened
		sh.printTranscript()

	case "/delete":
		session := sh.sessionArg(arg)
		if session == nil {
			break
		}
		if err := sh.manager.DeleteChat(ctx, session.ID); err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		if sh.session == session {
			sh.session = sh.manager.NewChat()
		}
		fmt.Println("deleted")

	case "/regen":
		sh.regenerate(ctx)

	case "/upload":
		sh.upload(arg)

	case "/tag":
		sh.pendingTag = arg
		if arg == "" {
			fmt.Println("tag cleared")
		}

	case "/translate":
		if len(fields) < 4 {
			fmt.Println("usage: /translate <source> <target> <text>")
			break
		}
		text := strings.TrimSpace(strings.TrimPrefix(arg, fields[1]+" "+fields[2]))
		err := sh.manager.Translate(ctx, sh.session.Model(), text, fields[1], fields[2], func(chunk chat.Chunk) error {
			if chunk.Kind == chat.ChunkText {
				fmt.Print(chunk.Content)
			}
			return nil
		})
		fmt.Println()
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}

	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}

	return true
}

func (sh *shell) send(ctx context.Context, text string) {
	sh.resetRender()

	files := sh.pendingFiles
	tag := sh.pendingTag
	sh.pendingFiles = nil
	sh.pendingTag = ""

	if err := sh.manager.SendMessage(ctx, sh.session, text, files, tag); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println()
}

func (sh *shell) regenerate(ctx context.Context) {
	display := sh.session.DisplayMessages()
	if len(display) == 0 {
		fmt.Println("nothing to regenerate")
		return
	}

	sh.resetRender()
	if err := sh.manager.Regenerate(ctx, sh.session, display[len(display)-1].MessageID()); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println()
}

func (sh *shell) upload(path string) {
	if path == "" {
		fmt.Println("usage: /upload <path>")
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	kind := chat.FileDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		kind = chat.FileImage
	}

	sh.pendingFiles = append(sh.pendingFiles, &chat.UserFile{
		Kind:    kind,
		Name:    filepath.Base(path),
		Content: content,
	})
	fmt.Printf("attached %s (%s)\n", filepath.Base(path), kind)
}

func (sh *shell) sessionArg(arg string) *chat.Session {
	index, err := strconv.Atoi(arg)
	sessions := sh.manager.Sessions()
	if err != nil || index < 1 || index > len(sessions) {
		fmt.Println("expected a chat number from /chats")
		return nil
	}
	return sessions[index-1]
}

func (sh *shell) resetRender() {
	sh.renderedSubs = 0
	sh.renderedRunes = 0
}

// render is the manager's update hook: it prints whatever streamed into
// the current assistant message since the last call.
func (sh *shell) render(s *chat.Session) {
	if s != sh.session {
		return
	}

	display := s.DisplayMessages()
	if len(display) == 0 {
		return
	}
	assistant, ok := display[len(display)-1].(*chat.AssistantMessage)
	if !ok {
		return
	}

	subs := assistant.SubMessages()
	for i := sh.renderedSubs; i < len(subs); i++ {
		if i > sh.renderedSubs || sh.renderedRunes == 0 {
			sh.printSubHeader(subs[i])
		}
		if i > sh.renderedSubs {
			sh.renderedRunes = 0
		}

		if text, isText := subs[i].(*chat.TextSubMessage); isText {
			runes := []rune(text.Content)
			if sh.renderedRunes > len(runes) {
				// Replace() shrank the buffer; the cut text is already on
				// screen, so just resync the cursor.
				sh.renderedRunes = len(runes)
			}
			fmt.Print(string(runes[sh.renderedRunes:]))
			sh.renderedRunes = len(runes)
		}

		if i < len(subs)-1 {
			fmt.Println()
		}
	}
	if len(subs) > 0 {
		sh.renderedSubs = len(subs) - 1
	}
}

func (sh *shell) printSubHeader(sub chat.SubMessage) {
	switch m := sub.(type) {
	case *chat.TextSubMessage:
		if m.Thinking {
			fmt.Println("[thinking]")
		}
	case *chat.ToolCallSubMessage:
		fmt.Printf("[tool %s] %s\n", m.ToolName, m.Summary)
	case *chat.ImageMockSubMessage:
		fmt.Printf("[generating %dx%d image...]\n", m.Width, m.Height)
	case *chat.AttachmentSubMessage:
		fmt.Printf("[image attachment, %d bytes]\n", len(m.Image))
	case *chat.ErrorSubMessage:
		fmt.Printf("[%s] %s\n", m.Title, m.Message)
	}
}

func (sh *shell) printTranscript() {
	for _, msg := range sh.session.DisplayMessages() {
		switch m := msg.(type) {
		case *chat.UserMessage:
			fmt.Printf("> %s\n", m.Content)
		case *chat.AssistantMessage:
			for _, sub := range m.SubMessages() {
				sh.printSubHeader(sub)
				if text, ok := sub.(*chat.TextSubMessage); ok && !text.Thinking {
					fmt.Println(text.Content)
				}
			}
		}
	}
	sh.resetRender()
}
