package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"neuroplex/pkg/neuroplex"
)

const defaultNetworkFile = "network.json"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "add-neuron":
		return runAddNeuron(ctx, args[1:])
	case "connect":
		return runConnect(ctx, args[1:])
	case "stimulate":
		return runStimulate(ctx, args[1:])
	case "step":
		return runStep(ctx, args[1:])
	case "learn":
		return runLearn(ctx, args[1:])
	case "grow":
		return runGrow(ctx, args[1:])
	case "stats":
		return runStats(ctx, args[1:])
	case "xor":
		return runXOR(ctx, args[1:])
	case "checkpoint":
		return runCheckpoint(ctx, args[1:])
	case "restore":
		return runRestore(ctx, args[1:])
	case "config":
		return runConfig(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	file := fs.String("file", defaultNetworkFile, "network file")
	configPath := fs.String("config", "", "optional JSON or YAML config file")
	force := fs.Bool("force", false, "overwrite an existing network file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*file); err == nil && !*force {
		return fmt.Errorf("%s already exists; use --force to overwrite", *file)
	}
	cfg := neuroplex.DefaultConfig()
	if *configPath != "" {
		loaded, err := neuroplex.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	network := neuroplex.New(neuroplex.Options{Config: cfg})
	if err := network.Save(*file); err != nil {
		return err
	}
	fmt.Printf("initialized network file=%s\n", *file)
	return nil
}

func runAddNeuron(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("add-neuron", flag.ContinueOnError)
	common := bindNetworkFlags(fs)
	id := fs.String("id", "", "neuron id")
	kind := fs.String("type", "default", "neuron type: default|novelty|stress|reward|<custom>")
	state := fs.Float64("state", 0, "initial activation (0-100)")
	bias := fs.Float64("bias", 0, "neuron bias")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("--id is required")
	}

	network, err := common.load()
	if err != nil {
		return err
	}
	err = network.AddNeuron(*id,
		neuroplex.WithType(neuroplex.ParseNeuronType(*kind)),
		neuroplex.WithState(*state),
		neuroplex.WithBias(*bias),
	)
	if err != nil {
		return err
	}
	if err := network.Save(common.file); err != nil {
		return err
	}
	fmt.Printf("added neuron id=%s type=%s state=%.2f\n", *id, neuroplex.ParseNeuronType(*kind), *state)
	return nil
}

func runConnect(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	common := bindNetworkFlags(fs)
	source := fs.String("source", "", "source neuron id")
	target := fs.String("target", "", "target neuron id")
	weight := fs.Float64("weight", 0.1, "connection weight")
	bidirectional := fs.Bool("bidirectional", false, "also connect target to source")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *source == "" || *target == "" {
		return errors.New("--source and --target are required")
	}

	network, err := common.load()
	if err != nil {
		return err
	}
	if *bidirectional {
		err = network.ConnectBidirectional(*source, *target, *weight)
	} else {
		err = network.Connect(*source, *target, *weight)
	}
	if err != nil {
		return err
	}
	if err := network.Save(common.file); err != nil {
		return err
	}
	fmt.Printf("connected %s -> %s weight=%.4f bidirectional=%t\n", *source, *target, *weight, *bidirectional)
	return nil
}

func runStimulate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("stimulate", flag.ContinueOnError)
	common := bindNetworkFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	states, err := parseAssignments(fs.Args())
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return errors.New("expected at least one id=value assignment")
	}

	network, err := common.load()
	if err != nil {
		return err
	}
	if err := network.UpdateState(states); err != nil {
		return err
	}
	if err := network.Save(common.file); err != nil {
		return err
	}
	fmt.Printf("stimulated neurons=%d\n", len(states))
	return nil
}

func runStep(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("step", flag.ContinueOnError)
	common := bindNetworkFlags(fs)
	steps := fs.Int("steps", 1, "propagation passes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps <= 0 {
		return errors.New("--steps must be > 0")
	}

	network, err := common.load()
	if err != nil {
		return err
	}
	for i := 0; i < *steps; i++ {
		if err := network.PropagateActivation(); err != nil {
			return err
		}
	}
	if err := network.Save(common.file); err != nil {
		return err
	}
	for _, id := range network.NeuronIDs() {
		value, err := network.NeuronValue(id)
		if err != nil {
			return err
		}
		fmt.Printf("%s=%.4f\n", id, value)
	}
	return nil
}

func runLearn(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("learn", flag.ContinueOnError)
	common := bindNetworkFlags(fs)
	passes := fs.Int("passes", 1, "Hebbian passes")
	decay := fs.Float64("decay", 0, "decay every weight by this factor after learning")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *passes <= 0 {
		return errors.New("--passes must be > 0")
	}

	network, err := common.load()
	if err != nil {
		return err
	}
	if err := network.InitializeLearning(); err != nil {
		return err
	}
	total := 0
	for i := 0; i < *passes; i++ {
		updated, err := network.PerformLearning()
		if err != nil {
			return err
		}
		total += len(updated)
	}
	decayed := 0
	if *decay > 0 {
		if decayed, err = network.ApplyWeightDecay(*decay); err != nil {
			return err
		}
	}
	if err := network.Save(common.file); err != nil {
		return err
	}
	fmt.Printf("learned passes=%d updates=%d decayed=%d\n", *passes, total, decayed)
	return nil
}

func runGrow(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("grow", flag.ContinueOnError)
	common := bindNetworkFlags(fs)
	novelty := fs.Float64("novelty", 0, "novelty_exposure signal")
	stress := fs.Float64("stress", 0, "sustained_stress signal")
	reward := fs.Float64("reward", 0, "recent_rewards signal")
	if err := fs.Parse(args); err != nil {
		return err
	}

	signals, err := parseAssignments(fs.Args())
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "novelty":
			signals["novelty_exposure"] = *novelty
		case "stress":
			signals["sustained_stress"] = *stress
		case "reward":
			signals["recent_rewards"] = *reward
		}
	})
	if len(signals) == 0 {
		return errors.New("expected at least one signal")
	}

	network, err := common.load()
	if err != nil {
		return err
	}
	if err := network.InitializeLearning(); err != nil {
		return err
	}
	ids, err := network.CheckNeurogenesis(signals)
	if err != nil {
		return err
	}
	if err := network.Save(common.file); err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("no neurons created")
		return nil
	}
	fmt.Printf("created neurons=%s\n", strings.Join(ids, ","))
	return nil
}

func runStats(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	common := bindNetworkFlags(fs)
	top := fs.Int("top", 5, "strongest connections to list")
	asJSON := fs.Bool("json", false, "force JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	network, err := common.load()
	if err != nil {
		return err
	}
	report := statsReport{
		Statistics: network.Statistics(),
		Strongest:  network.StrongestConnections(*top),
	}
	if *asJSON || !stdoutIsTerminal() {
		return writeJSON(os.Stdout, report)
	}
	printStatsTable(os.Stdout, report)
	return nil
}

func runXOR(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("xor", flag.ContinueOnError)
	common := bindStoreFlags(fs)
	epochs := fs.Int("epochs", 2000, "training epochs")
	hidden := fs.Int("hidden", 2, "hidden neurons")
	lr := fs.Float64("lr", 0.5, "learning rate")
	momentum := fs.Float64("momentum", 0.9, "momentum")
	targetError := fs.Float64("target-error", 0.01, "stop once the epoch error reaches this value")
	seed := fs.Int64("seed", 1, "random seed")
	runID := fs.String("run-id", "xor", "training history key and checkpoint name")
	out := fs.String("out", "", "optional network file to write the trained network to")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *epochs <= 0 || *hidden <= 0 {
		return errors.New("--epochs and --hidden must be > 0")
	}

	network, err := buildXORNetwork(*hidden, *seed, newLogger(*verbose))
	if err != nil {
		return err
	}
	history, err := network.Train(xorExamples, *epochs, neuroplex.TrainOptions{
		LearningRate: *lr,
		Momentum:     momentum,
		TargetError:  targetError,
	})
	if err != nil {
		return err
	}
	accuracy, err := network.Evaluate(xorExamples)
	if err != nil {
		return err
	}

	store, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = neuroplex.CloseStore(store)
	}()
	if err := store.SaveTrainingHistory(ctx, *runID, history); err != nil {
		return err
	}
	if err := network.Checkpoint(ctx, store, *runID); err != nil {
		return err
	}
	if *out != "" {
		if err := network.Save(*out); err != nil {
			return err
		}
	}

	fmt.Printf("run_id=%s epochs=%s final_error=%.6f accuracy=%.2f\n",
		*runID, humanize.Comma(int64(len(history))), history[len(history)-1], accuracy)
	for _, ex := range xorExamples {
		output, err := network.Forward(ex.Inputs)
		if err != nil {
			return err
		}
		fmt.Printf("%v -> %.2f (want %.0f)\n", ex.Inputs, output[0], ex.Targets[0])
	}
	return nil
}

func runCheckpoint(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkpoint", flag.ContinueOnError)
	common := bindNetworkFlags(fs)
	stores := bindStoreFlags(fs)
	name := fs.String("name", "", "checkpoint name")
	list := fs.Bool("list", false, "list stored checkpoints instead of saving")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := stores.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = neuroplex.CloseStore(store)
	}()

	if *list {
		names, err := store.ListNetworks(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}
	if *name == "" {
		return errors.New("--name is required")
	}

	network, err := common.load()
	if err != nil {
		return err
	}
	if err := network.Checkpoint(ctx, store, *name); err != nil {
		return err
	}
	size := "unknown size"
	if info, err := os.Stat(common.file); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	fmt.Printf("checkpoint name=%s store=%s source=%s (%s)\n", *name, stores.kind, common.file, size)
	return nil
}

func runRestore(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	common := bindNetworkFlags(fs)
	stores := bindStoreFlags(fs)
	name := fs.String("name", "", "checkpoint name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return errors.New("--name is required")
	}

	store, err := stores.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = neuroplex.CloseStore(store)
	}()

	network, err := neuroplex.Restore(ctx, store, *name, common.options())
	if err != nil {
		return err
	}
	if err := network.Save(common.file); err != nil {
		return err
	}
	stats := network.Statistics()
	fmt.Printf("restored name=%s file=%s neurons=%s connections=%s\n",
		*name, common.file, humanize.Comma(int64(stats.Neurons)), humanize.Comma(int64(stats.Connections)))
	return nil
}

func runConfig(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	out := fs.String("out", "", "write the default config to this .json/.yaml file")
	from := fs.String("from", "", "print the effective config of this network file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := neuroplex.DefaultConfig()
	if *from != "" {
		network, err := neuroplex.Load(*from, neuroplex.Options{})
		if err != nil {
			return err
		}
		cfg = network.Config()
	}
	if *out != "" {
		if err := cfg.SaveFile(*out); err != nil {
			return err
		}
		fmt.Printf("wrote config file=%s\n", *out)
		return nil
	}
	return writeJSON(os.Stdout, cfg.Map())
}

var xorExamples = []neuroplex.Example{
	{Inputs: []float64{0, 0}, Targets: []float64{0}},
	{Inputs: []float64{0, 100}, Targets: []float64{100}},
	{Inputs: []float64{100, 0}, Targets: []float64{100}},
	{Inputs: []float64{100, 100}, Targets: []float64{0}},
}

// buildXORNetwork wires a fully connected 2-hidden-1 network with weights drawn
// uniformly from [-1, 1).
func buildXORNetwork(hidden int, seed int64, logger *slog.Logger) (*neuroplex.Network, error) {
	network := neuroplex.New(neuroplex.Options{Seed: seed, Logger: logger})
	rng := rand.New(rand.NewSource(seed))

	inputs := []string{"x1", "x2"}
	hiddenIDs := make([]string, hidden)
	for i := range hiddenIDs {
		hiddenIDs[i] = fmt.Sprintf("h%d", i+1)
	}
	layers := [][]string{inputs, hiddenIDs, {"out"}}
	for _, layer := range layers {
		for _, id := range layer {
			if err := network.AddNeuron(id, neuroplex.WithState(0), neuroplex.WithBias(rng.Float64()*2-1)); err != nil {
				return nil, err
			}
		}
	}
	for l := 0; l < len(layers)-1; l++ {
		for _, from := range layers[l] {
			for _, to := range layers[l+1] {
				if err := network.Connect(from, to, rng.Float64()*2-1); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := network.SetLayers(layers); err != nil {
		return nil, err
	}
	return network, nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: neuroplexctl <init|add-neuron|connect|stimulate|step|learn|grow|stats|xor|checkpoint|restore|config> [flags]", msg)
}
