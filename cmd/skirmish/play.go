package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/skirmish/engine"
	"github.com/jason-s-yu/skirmish/internal/auth"
	"github.com/jason-s-yu/skirmish/internal/catalog"
	"github.com/jason-s-yu/skirmish/internal/config"
	"github.com/jason-s-yu/skirmish/internal/match"
	"github.com/jason-s-yu/skirmish/internal/narration"
	"github.com/jason-s-yu/skirmish/internal/store"
	"github.com/jason-s-yu/skirmish/internal/stream"
	"github.com/jason-s-yu/skirmish/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	playRounds int
	playSeed   uint64
	playServer string
	playResume string
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a full match with both sides on autopilot",
	Long: `Plays a match to the end, printing events as they happen. Actions are
resolved through an in-process loopback unless --server (or
SKIRMISH_SERVER_URL) names a websocket endpoint. --resume continues a match
from its last Redis snapshot.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("rounds") {
			cfg.RoundCap = playRounds
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = playSeed
		}
		if cmd.Flags().Changed("server") {
			cfg.ServerURL = playServer
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runMatch(ctx, cfg, log, cmd.OutOrStdout(), playResume)
	},
}

func init() {
	playCmd.Flags().IntVar(&playRounds, "rounds", 10, "round cap")
	playCmd.Flags().Uint64Var(&playSeed, "seed", 0, "RNG seed (0 derives one from the match id)")
	playCmd.Flags().StringVar(&playServer, "server", "", "websocket server URL")
	playCmd.Flags().StringVar(&playResume, "resume", "", "match id to resume from its snapshot")
	rootCmd.AddCommand(playCmd)
}

// runMatch plays one match to the end. A non-empty resume names a match to
// restore from the snapshot store.
func runMatch(ctx context.Context, cfg config.Config, log *logrus.Logger, out io.Writer, resume string) error {
	if resume != "" && cfg.RedisAddr == "" {
		return errors.New("--resume needs SKIRMISH_REDIS_ADDR")
	}
	if cfg.PlayerID == "" {
		cfg.PlayerID = uuid.NewString()
	}
	cat, _ := catalog.NewLoader(log).Load(cfg.CatalogPath)
	p := provider(cfg, log)

	var client *stream.Client
	tr, err := openTransport(ctx, cfg, log, p, func(error) {
		if client != nil {
			client.ClearActiveActions()
		}
	})
	if err != nil {
		return err
	}
	defer tr.Close()
	client = stream.New(tr, stream.WithLogger(log))
	tr.Start(client.Dispatch)

	opts := []match.Option{
		match.WithLogger(log),
		match.WithBalance(cfg.Balance()),
		match.WithCatalog(cat),
		match.WithSeed(cfg.Seed),
		match.WithPlayerID(cfg.PlayerID),
		match.WithNarrator(narration.NewSafeNarrator(p,
			narration.WithTimeout(cfg.NarrationTimeout),
			narration.WithLogger(log))),
	}
	if p != nil {
		opts = append(opts, match.WithDirector(match.NewDirector(p,
			match.WithDirectorTimeout(cfg.NarrationTimeout),
			match.WithDirectorLogger(log))))
	}
	var snaps *store.RedisSnapshots
	if cfg.RedisAddr != "" {
		rdb, err := store.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		snaps = store.NewRedisSnapshots(rdb, cfg.SnapshotTTL)
		opts = append(opts, match.WithSnapshotStore(snaps))
	}
	if cfg.PostgresDSN != "" {
		pool, err := store.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		hist := store.NewPostgresHistory(pool)
		if err := hist.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, match.WithHistory(hist))
	}

	var m *match.Match
	if resume != "" {
		var snap match.Snapshot
		if err := snaps.Load(ctx, resume, &snap); err != nil {
			return err
		}
		if m, err = match.Restore(client, snap, opts...); err != nil {
			return err
		}
	} else {
		m = match.New(client, opts...)
	}
	m.BroadcastFn = printer(out)
	// Unanswered actions would keep their await goroutines alive forever.
	defer func() {
		client.ClearActiveActions()
		m.Wait()
	}()

	if err := m.Watch(cfg.PlayerID); err != nil {
		log.WithError(err).Warn("push subscription failed")
	}
	defer func() {
		if err := m.Unwatch(); err != nil {
			log.WithError(err).Debug("unsubscribe")
		}
	}()

	if err := autoPlay(ctx, m, resume != ""); err != nil {
		return err
	}
	m.Wait()
	snap := m.Snapshot()
	if snaps != nil {
		if err := snaps.Delete(ctx, snap.MatchID); err != nil {
			log.WithError(err).Warn("drop finished snapshot")
		}
	}
	fmt.Fprintf(out, "\nresult: %s after %d rounds (hp %d/%d, seed %d)\n",
		snap.Winner, snap.Round, snap.Player.HP, snap.Opponent.HP, snap.Seed)
	return nil
}

func openTransport(ctx context.Context, cfg config.Config, log *logrus.Logger, p narration.Provider, onDisconnect func(error)) (transport.Transport, error) {
	if cfg.ServerURL == "" {
		return transport.NewLoopback(
			transport.WithLogger(log),
			transport.WithResolver(gameResolver(p, cfg.NarrationTimeout))), nil
	}
	token, err := auth.Issue([]byte(cfg.JWTSecret), cfg.PlayerID, time.Hour)
	if err != nil {
		return nil, err
	}
	return transport.Dial(ctx, cfg.ServerURL, token,
		transport.WithLogger(log),
		transport.WithOnDisconnect(onDisconnect))
}

// autoPlay drives m to GAME_END: the player on AutoPlace, the opponent on
// the director when one is configured.
func autoPlay(ctx context.Context, m *match.Match, resumed bool) error {
	begin := m.Start
	if resumed {
		begin = m.Resume
	}
	if err := begin(ctx); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch m.Phase() {
		case match.PhaseGameEnd:
			return nil
		case match.PhasePlacement:
			if err := m.AutoPlace(engine.SidePlayer); err != nil {
				return err
			}
			if err := m.DirectPlace(ctx, engine.SideOpponent); err != nil {
				return err
			}
			err = m.BeginResolution()
		case match.PhaseResolution:
			if err = m.ResolveAll(ctx); err != nil {
				return err
			}
			if m.TalkActive() {
				_, err = m.EndTalk()
				break
			}
			if m.Phase() == match.PhaseResolution {
				err = m.EndRound()
			}
		default:
			err = m.Advance()
		}
		if err != nil {
			return err
		}
	}
}

// printer renders events as one line each.
func printer(w io.Writer) func(match.GameEvent) {
	var mu sync.Mutex
	return func(ev match.GameEvent) {
		line := describe(ev)
		if line == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "[r%d %-15s] %s\n", ev.Round, ev.Phase, line)
	}
}

func describe(ev match.GameEvent) string {
	switch ev.Type {
	case match.EventNarration:
		return fmt.Sprintf("%v", ev.Payload["text"])
	case match.EventInitiative:
		return fmt.Sprintf("%s wins initiative", ev.Side)
	case match.EventThreatSpawned:
		if t, ok := ev.Payload["threat"].(engine.ThreatEncounter); ok {
			return fmt.Sprintf("%s (difficulty %d) threatens %s", t.Name, t.Difficulty, ev.Side)
		}
	case match.EventThreatResolved:
		if r, ok := ev.Payload["result"].(engine.ThreatResult); ok {
			if r.Defended {
				return fmt.Sprintf("%s fends off %s", r.Target, r.Threat)
			}
			return fmt.Sprintf("%s hits %s for %d", r.Threat, r.Target, r.Damage.Final)
		}
	case match.EventActionPlaced:
		if s, ok := ev.Payload["stack"].(engine.ActionStack); ok {
			return fmt.Sprintf("%s places %s at %v", ev.Side, s.CoreAction, ev.Payload["position"])
		}
	case match.EventPositionResolved:
		if note, ok := ev.Payload["skipped"]; ok {
			return fmt.Sprintf("position %v skipped (%v)", ev.Payload["position"], note)
		}
		if r, ok := ev.Payload["result"].(*match.PositionResult); ok {
			if r.Combat != nil {
				return fmt.Sprintf("%s attacks: %d vs %d, %s", ev.Side, r.Combat.Attack.Total, r.Combat.Defense.Total, r.Combat.Outcome.Label)
			}
			return fmt.Sprintf("%s resolves %s", ev.Side, r.Action)
		}
	case match.EventActionFailed:
		return fmt.Sprintf("position %v failed: %v", ev.Payload["position"], ev.Payload["error"])
	case match.EventRoundEnd:
		return fmt.Sprintf("round to %s (%v-%v)", ev.Side, ev.Payload["playerPoints"], ev.Payload["opponentPoints"])
	case match.EventScenario:
		if r, ok := ev.Payload["endThreat"].(engine.EndThreatResult); ok {
			return "scenario: " + r.Scenario.Name
		}
	case match.EventPush:
		return fmt.Sprintf("push %v", ev.Payload["topic"])
	case match.EventGameEnd:
		return fmt.Sprintf("game over, winner %s (%v)", ev.Side, ev.Payload["reason"])
	}
	return ""
}
