package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/dotsetgreg/leadbot/pkg/agent"
	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/config"
	"github.com/dotsetgreg/leadbot/pkg/events"
	"github.com/dotsetgreg/leadbot/pkg/prompts"
	"github.com/dotsetgreg/leadbot/pkg/utils"
	"github.com/google/uuid"
)

type chatOptions struct {
	phone  string
	name   string
	store  string
	typing bool
}

// consoleTransport prints bot replies to the terminal. It has no chat
// history and nothing to recover.
type consoleTransport struct {
	mu  sync.Mutex
	out io.Writer
}

func (t *consoleTransport) Send(_ context.Context, chatID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.out, "\n%s → %s:\n%s\n\n", appName, chatID, text)
	return err
}

func (t *consoleTransport) FetchHistory(context.Context, string, int) ([]agent.HistoryItem, error) {
	return nil, nil
}

func (t *consoleTransport) FetchUnanswered(context.Context, time.Duration) ([]bus.InboundMessage, error) {
	return nil, nil
}

// consoleInbound wraps one typed line as a customer message.
func consoleInbound(chatID, name, line string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:     "console",
		MessageID:   uuid.NewString(),
		ChatID:      chatID,
		SenderID:    chatID,
		SenderName:  name,
		MessageType: "textMessage",
		Content:     line,
		Source:      bus.SourceConsole,
		ReceivedAt:  time.Now(),
	}
}

func chatCmd(cfg *config.Config, opts chatOptions) error {
	ctx := context.Background()
	chatID := utils.ChatID(opts.phone)
	if chatID == "" {
		return fmt.Errorf("invalid phone number %q", opts.phone)
	}

	p, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, opts.store)
	if err != nil {
		return fmt.Errorf("open lead store: %w", err)
	}
	if store != nil {
		defer store.Close()
	}
	model, err := openModel(cfg, p, nil)
	if err != nil {
		return err
	}

	rl, rlErr := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s You: ", opts.name),
		HistoryFile:     filepath.Join(os.TempDir(), ".leadbot_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	var out io.Writer = os.Stdout
	if rlErr == nil {
		defer rl.Close()
		out = rl.Stdout()
	}
	transport := &consoleTransport{out: out}

	engineCfg := agent.EngineConfigFrom(cfg, p)
	engineCfg.SweepEnabled = false
	if !opts.typing {
		engineCfg.Pipeline.TypingDelay = func(string) time.Duration { return 0 }
	}
	engine := agent.NewEngine(engineCfg, pipelineDeps(transport, model, store, agent.NewOperatorNotifier(transport, "operator@console"), events.Nop{}, nil), nil)

	fmt.Printf("%s console as %s (%s). Messages within %s form one turn. Type exit to quit.\n\n",
		appName, opts.name, chatID, engineCfg.BatchWait)
	if model == nil {
		fmt.Println("! No model credentials: replies use the offline text")
	}

	send := func(line string) {
		engine.Intake.Accept(ctx, consoleInbound(chatID, opts.name, line))
	}
	if rlErr != nil {
		fmt.Printf("Readline unavailable (%v), using plain input\n", rlErr)
		simpleChatLoop(os.Stdin, send)
	} else {
		readlineChatLoop(rl, send)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), engineCfg.Pipeline.TurnTimeout)
	defer cancel()
	return engine.Shutdown(shutdownCtx)
}

func readlineChatLoop(rl *readline.Instance, send func(string)) {
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !handleChatLine(line, send) {
			return
		}
	}
}

func simpleChatLoop(in io.Reader, send func(string)) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if !handleChatLine(scanner.Text(), send) {
			return
		}
	}
	fmt.Println("\nGoodbye!")
}

// handleChatLine reports false when the user asked to leave.
func handleChatLine(line string, send func(string)) bool {
	input := strings.TrimSpace(line)
	switch input {
	case "":
		return true
	case "exit", "quit":
		fmt.Println("Goodbye!")
		return false
	}
	send(input)
	return true
}
