package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-rrsc/consensus/authorship"
	"github.com/rony4d/go-rrsc/epochstore"
	"github.com/rony4d/go-rrsc/flags"
	"github.com/rony4d/go-rrsc/inter/iepoch"
	"github.com/rony4d/go-rrsc/keystore"
	"github.com/rony4d/go-rrsc/metrics"
)

var (
	authorshipCommand = cli.Command{
		Action:    authorshipAction,
		Name:      "authorship",
		Usage:     "List the slots the local keys can claim in an epoch",
		ArgsUsage: "",
		Flags:     flags.EpochFlags(),
		Description: `
Evaluates every slot of the epoch for every held key that is an authority of
the epoch and prints, per authority, the primary, secondary and secondary VRF
slots it may author as JSON.`,
	}
	epochCommand = cli.Command{
		Action: epochAction,
		Name:   "epoch",
		Usage:  "Print an epoch in the current schema",
		Flags:  flags.EpochFlags(),
	}
	importCommand = cli.Command{
		Action:    importAction,
		Name:      "import",
		Usage:     "Write an epoch JSON file into the epoch database",
		ArgsUsage: "<epoch.json>",
		Description: `
Records without a config are legacy records. They are stored as such on
networks that predate per-epoch selection parameters, and upgraded with the
network's parameters otherwise (see --upgrades.epochconfig). The epoch must
last as long as the network's epochs and continue the stored neighbouring
epochs without gap or overlap.`,
	}
	migrateCommand = cli.Command{
		Action: migrateAction,
		Name:   "migrate",
		Usage:  "Rewrite all legacy epoch records in the current schema",
	}
	rulesCommand = cli.Command{
		Action: rulesAction,
		Name:   "rules",
		Usage:  "Print the network rules in effect",
	}
)

var errNoEpoch = errors.New("either --epoch or --epoch.file is required")

// env is what every command runs with.
type env struct {
	cfg Config
	log *logrus.Logger
	out io.Writer
}

func prepare(ctx *cli.Context) (*env, error) {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return nil, err
	}
	errOut := ctx.App.ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	log, err := newLogger(cfg.Node, errOut)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"network": cfg.Rules.Name, "preset": cfg.Node.Preset}).Debug("Config assembled")
	return &env{cfg: cfg, log: log, out: ctx.App.Writer}, nil
}

func (e *env) openStore(readonly bool) (*epochstore.Store, func(), error) {
	if !readonly {
		if err := ensureDir(e.cfg.Store.Path); err != nil {
			return nil, nil, err
		}
	}
	db, err := leveldb.New(e.cfg.Store.Path, e.cfg.Store.CacheMB, e.cfg.Store.Handles, e.cfg.Store.Namespace, readonly)
	if err != nil {
		return nil, nil, fmt.Errorf("open epoch database %s: %w", e.cfg.Store.Path, err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			e.log.WithError(err).Warn("Failed to close epoch database")
		}
	}
	return epochstore.New(db, e.log), closeDB, nil
}

// loadEpoch reads the epoch selected by --epoch.file or --epoch.
func (e *env) loadEpoch(ctx *cli.Context) (*iepoch.Epoch, error) {
	if file := ctx.String("epoch.file"); file != "" {
		v, err := readEpochFile(resolvePath(file))
		if err != nil {
			return nil, err
		}
		epoch, err := v.Upgrade(e.cfg.Rules.Selection)
		if err != nil {
			return nil, err
		}
		if err := epoch.Validate(); err != nil {
			return nil, err
		}
		return &epoch, nil
	}
	if !ctx.IsSet("epoch") {
		return nil, errNoEpoch
	}
	store, closeDB, err := e.openStore(true)
	if err != nil {
		return nil, err
	}
	defer closeDB()
	return store.Resolve(ctx.Uint64("epoch"), e.cfg.Rules.Selection)
}

func (e *env) printJSON(v interface{}) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func authorshipAction(ctx *cli.Context) error {
	e, err := prepare(ctx)
	if err != nil {
		return err
	}
	epoch, err := e.loadEpoch(ctx)
	if err != nil {
		return err
	}

	if e.cfg.Authorship.KeysFile == "" {
		return errors.New("--keys is required")
	}
	ks := keystore.NewMemory()
	loaded, err := ks.LoadFile(e.cfg.Authorship.KeysFile)
	if err != nil {
		return fmt.Errorf("load keys: %w", err)
	}

	opts := []authorship.Option{
		authorship.WithWorkers(e.cfg.Authorship.Workers),
		authorship.WithLogger(e.log),
	}
	if e.cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		opts = append(opts, authorship.WithMetrics(metrics.NewAuthorshipCollector(registry)))
		srv := startMetricsServer(e.cfg.Metrics, registry, e.log)
		defer srv.stop()
	}

	keys := authorship.LocalKeys(epoch, ks)
	e.log.WithFields(logrus.Fields{
		"epoch":       epoch.EpochIndex,
		"loaded":      len(loaded),
		"authorities": len(keys),
		"slots":       epoch.Duration,
		"span":        time.Duration(epoch.Duration) * e.cfg.Rules.Epochs.SlotDuration(),
	}).Info("Computing epoch authorship")
	if len(keys) == 0 {
		e.log.WithField("epoch", epoch.EpochIndex).Warn("None of the loaded keys is an authority of the epoch")
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := authorship.NewAggregator(ks, opts...).Aggregate(runCtx, epoch, keys)
	if err != nil {
		return err
	}
	for id, claims := range res {
		e.log.WithFields(logrus.Fields{"authority": id, "claims": claims.Len()}).Debug("Authority slots claimed")
	}
	return e.printJSON(res)
}

func epochAction(ctx *cli.Context) error {
	e, err := prepare(ctx)
	if err != nil {
		return err
	}
	epoch, err := e.loadEpoch(ctx)
	if err != nil {
		return err
	}
	return e.printJSON(toEpochJSON(epoch))
}

func importAction(ctx *cli.Context) error {
	e, err := prepare(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: %s %s", ctx.Command.Name, ctx.Command.ArgsUsage)
	}
	v, err := readEpochFile(resolvePath(ctx.Args().First()))
	if err != nil {
		return err
	}

	index, err := v.EpochIndex()
	if err != nil {
		return err
	}

	rules := e.cfg.Rules
	switch want := rules.EpochVersionAt(e.cfg.UpgradeHeights, index); {
	case v.Version == want:
	case want == iepoch.EpochVersionV1:
		epoch, err := v.Upgrade(rules.Selection)
		if err != nil {
			return err
		}
		v = iepoch.WrapCurrent(epoch)
	default:
		return fmt.Errorf("network %q stores legacy records at epoch %d, remove the config from the epoch file", rules.Name, index)
	}

	// reject records that could never be resolved
	epoch, err := v.Upgrade(rules.Selection)
	if err != nil {
		return err
	}
	if err := epoch.Validate(); err != nil {
		return err
	}
	if epoch.Duration != rules.Epochs.Duration {
		return fmt.Errorf("epoch %d lasts %d slots, network %q epochs last %d", index, epoch.Duration, rules.Name, rules.Epochs.Duration)
	}

	store, closeDB, err := e.openStore(false)
	if err != nil {
		return err
	}
	defer closeDB()
	if err := store.CheckContiguous(&epoch); err != nil {
		return err
	}
	if err := store.Put(v); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{"epoch": epoch.EpochIndex, "version": v.Version}).Info("Epoch imported")
	return nil
}

func migrateAction(ctx *cli.Context) error {
	e, err := prepare(ctx)
	if err != nil {
		return err
	}
	store, closeDB, err := e.openStore(false)
	if err != nil {
		return err
	}
	defer closeDB()
	_, err = store.Migrate(e.cfg.Rules.Selection)
	return err
}

func rulesAction(ctx *cli.Context) error {
	e, err := prepare(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.out, e.cfg.Rules.String())
	return err
}
