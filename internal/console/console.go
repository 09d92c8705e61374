package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/chronicle/internal/game/state"
	"github.com/cory-johannsen/chronicle/internal/game/turn"
)

const (
	thinkPrefix    = "think:"
	defaultHistory = 10
	maxLineBytes   = 1 << 20
)

// Turner runs turns and manages campaigns. *turn.Service satisfies it.
type Turner interface {
	ProcessAction(ctx context.Context, req turn.ActionRequest) (*turn.Response, error)
	CreateCampaign(ctx context.Context, req turn.CreateRequest) (state.Snapshot, error)
	History(ctx context.Context, campaignID string, limit int) ([]state.StoryEntry, error)
}

// Option configures a Console.
type Option func(*Console)

// WithCampaign selects the campaign the console starts on.
func WithCampaign(id string) Option {
	return func(c *Console) { c.campaignID = id }
}

// WithDebugCampaigns makes /new create campaigns with debug_mode on.
func WithDebugCampaigns(on bool) Option {
	return func(c *Console) { c.debugCampaigns = on }
}

// WithProduction hides internal error text from failed turns.
func WithProduction(on bool) Option {
	return func(c *Console) { c.production = on }
}

// Console is a line-oriented narrator session. It is not safe for concurrent use.
type Console struct {
	turns    Turner
	registry *Registry
	in       *bufio.Scanner
	out      io.Writer
	logger   *zap.Logger

	campaignID     string
	debugCampaigns bool
	production     bool
}

// New creates a Console reading player lines from in and writing to out.
//
// Precondition: turns, in, out, and logger must be non-nil.
func New(turns Turner, in io.Reader, out io.Writer, logger *zap.Logger, opts ...Option) *Console {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	c := &Console{
		turns:    turns,
		registry: DefaultRegistry(),
		in:       sc,
		out:      out,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CampaignID returns the selected campaign, empty when none is selected.
func (c *Console) CampaignID() string {
	return c.campaignID
}

// Run reads lines until input ends, the player quits, or ctx is done.
//
// Postcondition: Returns nil on EOF or quit; a read failure is returned as is.
func (c *Console) Run(ctx context.Context) error {
	c.writeLine(Colorize(BrightYellow, "Chronicle narrator console. Type /help for commands."))
	for {
		c.prompt()
		if !c.in.Scan() {
			return c.in.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		if quit := c.handleLine(ctx, c.in.Text()); quit {
			return nil
		}
	}
}

// handleLine dispatches one input line and reports whether the player quit.
func (c *Console) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case strings.HasPrefix(line, "/"):
		parsed := Parse(line[1:])
		cmd, ok := c.registry.Resolve(parsed.Command)
		if !ok {
			c.errorLine(fmt.Sprintf("Unknown command %q. Type /help for a list.", parsed.Command))
			return false
		}
		handler, ok := handlerMap[cmd.Handler]
		if !ok {
			c.logger.Error("command has no handler", zap.String("command", cmd.Name))
			return false
		}
		return handler(ctx, c, parsed)
	case strings.HasPrefix(strings.ToLower(line), thinkPrefix):
		c.play(ctx, strings.TrimSpace(line[len(thinkPrefix):]), state.ModeThink)
		return false
	default:
		c.play(ctx, line, state.ModeCharacter)
		return false
	}
}

// handlerFunc handles one slash command and reports whether the console should exit.
type handlerFunc func(ctx context.Context, c *Console, p ParseResult) bool

// handlerMap is the single source of truth for slash command dispatch.
var handlerMap = map[string]handlerFunc{
	HandlerThink:   handleThink,
	HandlerGod:     handleGod,
	HandlerState:   handleState,
	HandlerNew:     handleNew,
	HandlerUse:     handleUse,
	HandlerHistory: handleHistory,
	HandlerHelp:    handleHelp,
	HandlerQuit:    handleQuit,
}

func handleThink(ctx context.Context, c *Console, p ParseResult) bool {
	if p.RawArgs == "" {
		c.errorLine("Usage: /think <text>")
		return false
	}
	c.play(ctx, p.RawArgs, state.ModeThink)
	return false
}

func handleGod(ctx context.Context, c *Console, p ParseResult) bool {
	if p.RawArgs == "" {
		c.errorLine("Usage: /god <GOD_ASK_STATE | GOD_MODE_SET: ... | GOD_MODE_UPDATE_STATE: {...}>")
		return false
	}
	c.play(ctx, strings.ReplaceAll(p.RawArgs, `\n`, "\n"), state.ModeGod)
	return false
}

func handleState(ctx context.Context, c *Console, _ ParseResult) bool {
	c.play(ctx, "GOD_ASK_STATE", state.ModeGod)
	return false
}

func handleNew(ctx context.Context, c *Console, p ParseResult) bool {
	req := turn.CreateRequest{DebugMode: c.debugCampaigns}
	if p.RawArgs != "" {
		req.PlayerCharacter = map[string]any{"name": p.RawArgs}
	}
	snap, err := c.turns.CreateCampaign(ctx, req)
	if err != nil {
		c.writeLine(RenderResponse(turn.ErrorResponse(err, c.production)))
		return false
	}
	c.campaignID = snap.CampaignID
	c.writeLine(Colorf(Green, "Created campaign %s.", snap.CampaignID))
	if npcs := state.Section(snap.State, state.KeyNPCData); len(npcs) > 0 {
		names := make([]string, 0, len(npcs))
		for name := range npcs {
			names = append(names, name)
		}
		sort.Strings(names)
		c.writeLine(Colorf(Cyan, "Cast: %s", strings.Join(names, ", ")))
	}
	return false
}

func handleUse(ctx context.Context, c *Console, p ParseResult) bool {
	if len(p.Args) != 1 {
		c.errorLine("Usage: /use <campaign id>")
		return false
	}
	if _, err := c.turns.History(ctx, p.Args[0], 1); err != nil {
		c.writeLine(RenderResponse(turn.ErrorResponse(err, c.production)))
		return false
	}
	c.campaignID = p.Args[0]
	c.writeLine(Colorf(Green, "Now playing campaign %s.", c.campaignID))
	return false
}

func handleHistory(ctx context.Context, c *Console, p ParseResult) bool {
	if !c.requireCampaign() {
		return false
	}
	limit := defaultHistory
	if len(p.Args) > 0 {
		n, err := strconv.Atoi(p.Args[0])
		if err != nil || n < 1 {
			c.errorLine("Usage: /history [count]")
			return false
		}
		limit = n
	}
	entries, err := c.turns.History(ctx, c.campaignID, limit)
	if err != nil {
		c.writeLine(RenderResponse(turn.ErrorResponse(err, c.production)))
		return false
	}
	c.writeLine(RenderHistory(entries))
	return false
}

func handleHelp(_ context.Context, c *Console, _ ParseResult) bool {
	c.writeLine(RenderHelp(c.registry))
	return false
}

func handleQuit(_ context.Context, c *Console, _ ParseResult) bool {
	c.writeLine(Colorize(BrightYellow, "Farewell."))
	return true
}

// play runs one turn against the selected campaign and renders the result.
func (c *Console) play(ctx context.Context, input string, mode state.Mode) {
	if !c.requireCampaign() {
		return
	}
	resp, err := c.turns.ProcessAction(ctx, turn.ActionRequest{CampaignID: c.campaignID, Input: input, Mode: mode})
	if err != nil {
		c.logger.Debug("turn failed", zap.String("campaign_id", c.campaignID), zap.Error(err))
		resp = turn.ErrorResponse(err, c.production)
	}
	c.writeLine(RenderResponse(resp))
}

func (c *Console) requireCampaign() bool {
	if c.campaignID != "" {
		return true
	}
	c.errorLine("No campaign selected. Use /new or /use <campaign id>.")
	return false
}

func (c *Console) prompt() {
	label := c.campaignID
	if label == "" {
		label = "no campaign"
	}
	_, _ = io.WriteString(c.out, Colorf(BrightCyan, "[%s]> ", label))
}

func (c *Console) writeLine(text string) {
	_, _ = io.WriteString(c.out, text+"\n")
}

func (c *Console) errorLine(text string) {
	c.writeLine(Colorize(Red, text))
}
