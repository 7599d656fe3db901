package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"originchats/internal/pkg/logx"
)

// AutomodReason is reported to users timed out by the automod plugin.
const AutomodReason = "Automoderation: Message contains blocked words"

// AutomodCommand prefixes the chat commands that manage the plugin.
const AutomodCommand = "!automod"

// automodManagers are the roles allowed to run AutomodCommand.
var automodManagers = []string{"owner", "admin"}

const automodHelp = `AutoMod commands:
  !automod add <word>
  !automod remove <word>
  !automod list
  !automod clear
  !automod status
  !automod enable
  !automod disable
  !automod timeout <seconds>
  !automod toggle_delete`

// AutomodConfig is the JSON configuration file of the automod plugin.
type AutomodConfig struct {
	Enabled         bool     `json:"enabled"`
	BlockedWords    []string `json:"blocked_words"`
	TimeoutDuration float64  `json:"timeout_duration"`
	DeleteMessage   bool     `json:"delete_message"`
	SendModMessage  bool     `json:"send_mod_message"`
	ModMessage      string   `json:"mod_message"`
}

// DefaultAutomodConfig is used when the configuration file does not exist.
func DefaultAutomodConfig() AutomodConfig {
	return AutomodConfig{
		Enabled:         true,
		TimeoutDuration: 300,
		DeleteMessage:   true,
		SendModMessage:  true,
		ModMessage:      "{username} was automatically timed out for violating chat rules.",
	}
}

// Automod times out users whose messages contain a blocked word.
type Automod struct {
	path string

	mu  sync.RWMutex
	cfg AutomodConfig
}

// NewAutomod loads the configuration at path.
func NewAutomod(path string) (*Automod, error) {
	a := &Automod{path: path}
	if err := a.Reload(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Automod) Name() string { return "automod" }

// Reload re-reads the configuration file. A missing file restores the defaults.
func (a *Automod) Reload() error {
	cfg := DefaultAutomodConfig()

	data, err := os.ReadFile(a.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logx.Warn("Automod config not found, using defaults", "path", a.path)
	case err != nil:
		return fmt.Errorf("read automod config: %w", err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parse automod config %s: %w", a.path, err)
		}
	}

	for i, w := range cfg.BlockedWords {
		cfg.BlockedWords[i] = strings.ToLower(w)
	}

	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	return nil
}

// Config returns the active configuration.
func (a *Automod) Config() AutomodConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *Automod) blocked(content string) bool {
	lower := strings.ToLower(content)
	for _, w := range a.Config().BlockedWords {
		if w != "" && strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (a *Automod) Handle(ctx context.Context, host Host, ev Event) error {
	if ev.Name != EventNewMessage {
		return nil
	}

	content, _ := ev.Data["content"].(string)
	if args, ok := strings.CutPrefix(content, AutomodCommand); ok && canManage(ev) {
		return a.command(ctx, host, ev, strings.Fields(args))
	}

	cfg := a.Config()
	if !cfg.Enabled {
		return nil
	}
	if !a.blocked(content) {
		return nil
	}

	logx.Warn("Automod matched a blocked word",
		"user_id", ev.UserID,
		"channel", ev.Channel,
	)

	if id, _ := ev.Data["id"].(string); id != "" && cfg.DeleteMessage {
		if err := host.DeleteMessage(ctx, ev.Channel, id); err != nil {
			return fmt.Errorf("delete message %s: %w", id, err)
		}
	}

	if err := host.TimeoutUser(ctx, ev.UserID, cfg.TimeoutDuration, AutomodReason); err != nil {
		return fmt.Errorf("timeout user %s: %w", ev.UserID, err)
	}

	if cfg.SendModMessage && cfg.ModMessage != "" {
		text := strings.ReplaceAll(cfg.ModMessage, "{username}", ev.Username)
		if err := host.PostSystemMessage(ctx, ev.Channel, text); err != nil {
			return fmt.Errorf("post mod message: %w", err)
		}
	}
	return nil
}

func canManage(ev Event) bool {
	roles, _ := ev.Data["roles"].([]string)
	for _, r := range roles {
		if slices.Contains(automodManagers, r) {
			return true
		}
	}
	return false
}

// command runs one management command and answers in the channel it came from.
func (a *Automod) command(ctx context.Context, host Host, ev Event, args []string) error {
	reply, err := a.run(args)
	if err != nil {
		logx.Warn("Automod command failed", "user_id", ev.UserID, "error", err.Error())
		reply = "Error: " + err.Error()
	}
	if err := host.PostSystemMessage(ctx, ev.Channel, reply); err != nil {
		return fmt.Errorf("post automod reply: %w", err)
	}
	return nil
}

func (a *Automod) run(args []string) (string, error) {
	if len(args) == 0 {
		return automodHelp, nil
	}

	name, args := strings.ToLower(args[0]), args[1:]
	switch name {
	case "help":
		return automodHelp, nil

	case "add", "remove":
		if len(args) < 1 {
			return "", fmt.Errorf("usage: %s %s <word>", AutomodCommand, name)
		}
		word := strings.ToLower(args[0])
		err := a.update(func(cfg *AutomodConfig) error {
			i := slices.Index(cfg.BlockedWords, word)
			switch {
			case name == "add" && i >= 0:
				return fmt.Errorf("'%s' is already in the blocked words list", word)
			case name == "add":
				cfg.BlockedWords = append(cfg.BlockedWords, word)
			case i < 0:
				return fmt.Errorf("'%s' is not in the blocked words list", word)
			default:
				cfg.BlockedWords = slices.Delete(cfg.BlockedWords, i, i+1)
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		if name == "add" {
			return fmt.Sprintf("Added '%s' to blocked words", word), nil
		}
		return fmt.Sprintf("Removed '%s' from blocked words", word), nil

	case "list":
		words := a.Config().BlockedWords
		if len(words) == 0 {
			return "No blocked words currently configured", nil
		}
		return fmt.Sprintf("Blocked words (%d): %s", len(words), strings.Join(words, ", ")), nil

	case "clear":
		if len(a.Config().BlockedWords) == 0 {
			return "No blocked words to clear", nil
		}
		if err := a.update(func(cfg *AutomodConfig) error {
			cfg.BlockedWords = []string{}
			return nil
		}); err != nil {
			return "", err
		}
		return "Cleared all blocked words", nil

	case "status":
		cfg := a.Config()
		return fmt.Sprintf("AutoMod status: enabled=%t timeout=%gs send_mod_message=%t delete_message=%t blocked_words=%d",
			cfg.Enabled, cfg.TimeoutDuration, cfg.SendModMessage, cfg.DeleteMessage, len(cfg.BlockedWords)), nil

	case "enable", "disable":
		enabled := name == "enable"
		if err := a.update(func(cfg *AutomodConfig) error {
			cfg.Enabled = enabled
			return nil
		}); err != nil {
			return "", err
		}
		if enabled {
			return "AutoMod enabled", nil
		}
		return "AutoMod disabled", nil

	case "timeout":
		if len(args) < 1 {
			return "", fmt.Errorf("usage: %s timeout <seconds>", AutomodCommand)
		}
		seconds, err := strconv.Atoi(args[0])
		if err != nil || seconds < 0 {
			return "", fmt.Errorf("usage: %s timeout <seconds>", AutomodCommand)
		}
		if err := a.update(func(cfg *AutomodConfig) error {
			cfg.TimeoutDuration = float64(seconds)
			return nil
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Timeout duration set to %ds", seconds), nil

	case "toggle_delete":
		var on bool
		if err := a.update(func(cfg *AutomodConfig) error {
			cfg.DeleteMessage = !cfg.DeleteMessage
			on = cfg.DeleteMessage
			return nil
		}); err != nil {
			return "", err
		}
		if on {
			return "Message deletion enabled", nil
		}
		return "Message deletion disabled", nil

	default:
		return "", fmt.Errorf("unknown command: %s (use %s help)", name, AutomodCommand)
	}
}

// update applies fn to a copy of the configuration, saves it to the config file and
// then makes it active. Nothing changes when fn or the save fails.
func (a *Automod) update(fn func(cfg *AutomodConfig) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.cfg
	next.BlockedWords = slices.Clone(a.cfg.BlockedWords)
	if err := fn(&next); err != nil {
		return err
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode automod config: %w", err)
	}
	if err := os.WriteFile(a.path, data, 0o644); err != nil {
		return fmt.Errorf("save automod config: %w", err)
	}

	a.cfg = next
	return nil
}
