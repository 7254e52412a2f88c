package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bingo-engine/configs"
	"github.com/avvvet/bingo-engine/internal/comm"
	"github.com/avvvet/bingo-engine/internal/engine"
	"github.com/avvvet/bingo-engine/internal/gamesvc/db"
	"github.com/avvvet/bingo-engine/internal/gamesvc/service"
	"github.com/avvvet/bingo-engine/internal/gamesvc/store"
	nats "github.com/avvvet/bingo-engine/internal/nats"
)

type CLI struct {
	Debug   bool          `help:"Enable debug logging."`
	Timeout time.Duration `default:"30s" help:"Timeout for the whole command."`

	Migrate      MigrateCmd      `cmd:"" help:"Create or update the database schema."`
	GenCards     GenCardsCmd     `cmd:"gen-cards" help:"Generate bingo cards."`
	Select       SelectCmd       `cmd:"" help:"Stake a card for a player in the waiting round."`
	Deselect     DeselectCmd     `cmd:"" help:"Release a staked card and refund it."`
	CheckWinners CheckWinnersCmd `cmd:"check-winners" help:"Force a winner check on a round."`
	Resync       ResyncCmd       `cmd:"" help:"Rebuild every round's called numbers from the call log."`
	Status       StatusCmd       `cmd:"" help:"Show the engine heartbeat and the current round."`
}

// app carries what every command needs.
type app struct {
	ctx  context.Context
	cfg  *config.Config
	pool *pgxpool.Pool
}

func (a *app) repo() (store.Repository, error) {
	if a.pool == nil {
		pool, err := db.Connect(a.ctx, a.cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		a.pool = pool
	}
	return store.NewPGStore(a.pool), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(a *app) error {
	if _, err := a.repo(); err != nil {
		return err
	}
	if err := db.Migrate(a.ctx, a.pool); err != nil {
		return err
	}
	fmt.Println("schema up to date")
	return nil
}

type GenCardsCmd struct {
	Count int    `default:"200" help:"Number of cards to create."`
	Seed  *int64 `help:"Deterministic RNG seed (optional)."`
}

func (c *GenCardsCmd) Run(a *app) error {
	repo, err := a.repo()
	if err != nil {
		return err
	}
	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}
	n, err := service.NewCardService(repo, rand.New(rand.NewSource(seed))).Generate(a.ctx, c.Count)
	if err != nil {
		return err
	}
	fmt.Printf("created %d cards (seed %d)\n", n, seed)
	return nil
}

type SelectCmd struct {
	Round int64 `required:"" help:"Round id."`
	User  int64 `required:"" help:"Player user id."`
	Card  int   `required:"" help:"Card number."`
}

func (c *SelectCmd) Run(a *app) error {
	repo, err := a.repo()
	if err != nil {
		return err
	}
	sel, err := service.NewSelectionService(repo, a.cfg.BetAmount).Select(a.ctx, c.Round, c.User, c.Card)
	if err != nil {
		return err
	}
	return printJSON(sel)
}

type DeselectCmd struct {
	Round int64 `required:"" help:"Round id."`
	User  int64 `required:"" help:"Player user id."`
	Card  int   `required:"" help:"Card number."`
}

func (c *DeselectCmd) Run(a *app) error {
	repo, err := a.repo()
	if err != nil {
		return err
	}
	if err := service.NewSelectionService(repo, a.cfg.BetAmount).Deselect(a.ctx, c.Round, c.User, c.Card); err != nil {
		return err
	}
	fmt.Printf("card %d released\n", c.Card)
	return nil
}

type CheckWinnersCmd struct {
	Round   int64 `arg:"" help:"Round id."`
	ViaNats bool  `help:"Ask the running engine over NATS instead of settling directly."`
}

func (c *CheckWinnersCmd) Run(a *app) error {
	if c.ViaNats {
		return c.viaNats(a)
	}

	repo, err := a.repo()
	if err != nil {
		return err
	}
	eng, err := engine.New(repo, a.cfg.Engine)
	if err != nil {
		return err
	}
	settled, err := eng.ForceWinnerCheck(a.ctx, c.Round)
	if err != nil {
		return err
	}
	return printJSON(comm.CheckResult{RoundID: c.Round, Settled: settled})
}

func (c *CheckWinnersCmd) viaNats(a *app) error {
	n, err := nats.Connect(a.cfg.NatsURL, a.cfg.NatsToken, "bingoctl")
	if err != nil {
		return err
	}
	defer n.Close()

	payload, err := json.Marshal(comm.ControlRequest{Type: "force-check", RoundID: c.Round})
	if err != nil {
		return err
	}
	msg, err := n.Conn.RequestWithContext(a.ctx, comm.TopicEngineControl, payload)
	if err != nil {
		return fmt.Errorf("engine control: %w", err)
	}

	var resp comm.ControlResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return errors.New(resp.Error)
	}
	fmt.Println(string(resp.Data))
	return nil
}

type ResyncCmd struct{}

func (c *ResyncCmd) Run(a *app) error {
	repo, err := a.repo()
	if err != nil {
		return err
	}
	changed, err := engine.Resync(a.ctx, repo)
	if err != nil {
		return err
	}
	fmt.Printf("%d rounds repaired\n", changed)
	return nil
}

type StatusCmd struct{}

func (c *StatusCmd) Run(a *app) error {
	repo, err := a.repo()
	if err != nil {
		return err
	}

	out := map[string]any{}
	st, err := repo.LoadEngineState(a.ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		out["engine"] = nil
	case err != nil:
		return err
	default:
		out["engine"] = st
		out["resumable"] = engine.ShouldResume(st, time.Now(), a.cfg.ResumeWindow)
	}

	round, err := repo.CurrentRound(a.ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		out["round"] = nil
	case err != nil:
		return err
	default:
		out["round"] = round
	}
	return printJSON(out)
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("bingoctl"),
		kong.Description("Operator tooling for the bingo engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	config.LoadEnv("bingoctl")
	level := "warn"
	if cli.Debug {
		level = "debug"
	}
	kctx.FatalIfErrorf(config.Logging("bingoctl", "", level))

	cfg, err := config.Load()
	kctx.FatalIfErrorf(err)

	ctx, cancel := context.WithTimeout(context.Background(), cli.Timeout)
	defer cancel()

	a := &app{ctx: ctx, cfg: cfg}
	err = kctx.Run(a)
	if a.pool != nil {
		a.pool.Close()
	}
	if err != nil {
		log.WithError(err).Debug("command failed")
	}
	kctx.FatalIfErrorf(err)
}
