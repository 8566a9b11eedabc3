// stakecored is a demo node driving staking/hooks end to end: it loads a
// genesis file (or falls back to a small built-in one), runs init_chain,
// steps a handful of blocks and epoch boundaries against an in-memory
// store and fake collaborators, and logs every validator update set it
// publishes. It is not a real consensus node — there is no networking,
// persistence, or RPC surface, matching spec.md §6's "CLI/env/config: none
// at the core level" note — it exists only to exercise the CORE the same
// way cmd/opera/launcher exercises the teacher's full node.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/evalphobia/logrus_sentry"
	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/opera-stake/flags"
	"github.com/rony4d/opera-stake/staking/collaborators/fake"
	"github.com/rony4d/opera-stake/staking/hooks"
	"github.com/rony4d/opera-stake/staking/store"
	"github.com/rony4d/opera-stake/staking/store/kvstore"
	"github.com/rony4d/opera-stake/staking/store/memstore"
	"github.com/rony4d/opera-stake/staking/types"
	"github.com/rony4d/opera-stake/staking/validatorupdate"
)

var app = flags.NewApp()

// Launch parses flags, wires a Hooks instance over an in-memory store and
// fake collaborators, and drives it through genesis plus a short demo
// run of blocks and epoch boundaries.
func Launch(args []string) error {
	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, cli.IntFlag{
		Name:  "demo.epochs",
		Usage: "Number of epoch boundaries to simulate after init_chain",
		Value: 1,
	})
	app.Flags = append(app.Flags, cli.Uint64Flag{
		Name:  "demo.issuance",
		Usage: "Staking-token issuance budget credited to each simulated epoch",
		Value: 1_000_000,
	})
	app.Flags = append(app.Flags, cli.StringFlag{
		Name:  "demo.backend",
		Usage: "Accessor-layer backend to drive the hooks over: \"mem\" (plain Go maps) or \"kv\" (RLP-over-flat-map, the shape the real versioned store presents)",
		Value: "mem",
	})
	app.Action = runDemo
	return app.Run(args)
}

func newDemoStore(backend string) (store.Store, error) {
	switch backend {
	case "", "mem":
		return memstore.New(), nil
	case "kv":
		return kvstore.New(kvstore.NewMemKV()), nil
	default:
		return nil, fmt.Errorf("unknown demo.backend %q (want \"mem\" or \"kv\")", backend)
	}
}

func runDemo(c *cli.Context) error {
	if err := configureLogging(c); err != nil {
		return err
	}

	genesis, err := loadGenesis(c.String("genesis"))
	if err != nil {
		return err
	}

	backend, err := newDemoStore(c.String("demo.backend"))
	if err != nil {
		return err
	}
	collabs, dist, _, pool, _, _ := fake.Set()
	h := hooks.New(backend, genesis.Params, collabs)

	updates, err := h.InitChain(genesis)
	if err != nil {
		return fmt.Errorf("init_chain: %w", err)
	}
	logUpdates("init_chain", updates)

	epochs := uint64(c.Int("demo.epochs"))
	issuance := c.Uint64("demo.issuance")
	height := types.BlockHeight(1)

	for e := types.EpochIndex(0); uint64(e) < epochs; e++ {
		startHeight := height
		if err := h.BeginBlock(height, e, nil, nil); err != nil {
			return fmt.Errorf("begin_block(%d): %w", uint64(height), err)
		}
		if err := h.EndBlock(height); err != nil {
			return fmt.Errorf("end_block(%d): %w", uint64(height), err)
		}
		height++

		dist.SetBudget(e, issuance)
		updates, err := h.EndEpoch(e, startHeight, startHeight)
		if err != nil {
			return fmt.Errorf("end_epoch(%d): %w", uint64(e), err)
		}
		logUpdates(fmt.Sprintf("end_epoch(%d)", uint64(e)), updates)
	}

	logrus.WithField("community_pool_total", pool.Total).Info("demo run complete")
	return nil
}

func logUpdates(stage string, updates []validatorupdate.Update) {
	for _, u := range updates {
		logrus.WithField("stage", stage).
			WithField("key", fmt.Sprintf("%x", []byte(u.Key))).
			WithField("power", u.Power).
			Info("validator update")
	}
}

func configureLogging(c *cli.Context) error {
	switch c.String("log.format") {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{ForceColors: c.Bool("log.color")})
	}

	levels := []logrus.Level{
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
		logrus.DebugLevel,
		logrus.TraceLevel,
	}
	verbosity := c.Int("log.verbosity")
	if verbosity < 0 {
		verbosity = 0
	}
	if verbosity >= len(levels) {
		verbosity = len(levels) - 1
	}
	logrus.SetLevel(levels[verbosity])

	if dsn := c.String("sentry.dsn"); dsn != "" {
		hook, err := logrus_sentry.NewSentryHook(dsn, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			return fmt.Errorf("configuring sentry hook: %w", err)
		}
		logrus.AddHook(hook)
	}
	return nil
}

func loadGenesis(path string) (types.Genesis, error) {
	if path == "" {
		return defaultGenesis(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Genesis{}, fmt.Errorf("reading genesis file: %w", err)
	}
	var g types.Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return types.Genesis{}, fmt.Errorf("parsing genesis file: %w", err)
	}
	return g, nil
}

// defaultGenesis is used when no --genesis file is given: two validators,
// one with a funding stream routed to the community pool, so the demo run
// exercises both the plain compounding path and the commission path.
func defaultGenesis() types.Genesis {
	return types.Genesis{
		InitialBaseExchangeRate: types.ExchangeRateScale,
		Params: types.StakeParameters{
			ActiveValidatorLimit:       10,
			SignedBlocksWindowLen:      100,
			MissedBlocksMaximum:        10,
			UnbondingEpochs:            5,
			SlashingPenaltyDowntime:    types.Penalty{Value: 1_000_000},
			SlashingPenaltyMisbehavior: types.Penalty{Value: 50_000_000},
		},
		Validators: []types.GenesisValidator{
			{
				Validator: types.Validator{
					IdentityKey:  types.IdentityKey("demo-validator-one"),
					ConsensusKey: types.ConsensusKey("demo-consensus-key-one"),
					Name:         "demo-validator-one",
					Enabled:      true,
				},
				InitialDelegationSupply: 1_000_000,
			},
			{
				Validator: types.Validator{
					IdentityKey:  types.IdentityKey("demo-validator-two"),
					ConsensusKey: types.ConsensusKey("demo-consensus-key-two"),
					Name:         "demo-validator-two",
					Enabled:      true,
					FundingStreams: []types.FundingStream{
						{RateBps: 500, Recipient: types.FundingStreamRecipient{Kind: types.RecipientCommunityPool}},
					},
				},
				InitialDelegationSupply: 2_000_000,
			},
		},
	}
}
