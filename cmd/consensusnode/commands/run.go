package commands

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xxnithicxx/Consensus-Lab-Project/chain"
	"github.com/xxnithicxx/Consensus-Lab-Project/config"
	"github.com/xxnithicxx/Consensus-Lab-Project/consensus"
	"github.com/xxnithicxx/Consensus-Lab-Project/consensus/hybrid"
	"github.com/xxnithicxx/Consensus-Lab-Project/consensus/pow"
	"github.com/xxnithicxx/Consensus-Lab-Project/gossip"
	"github.com/xxnithicxx/Consensus-Lab-Project/node"
	"github.com/xxnithicxx/Consensus-Lab-Project/peers"
	"github.com/xxnithicxx/Consensus-Lab-Project/scenario"
	"github.com/xxnithicxx/Consensus-Lab-Project/service"
)

// NewRunCmd returns the command that runs one simulator node, implementing
// the invocation surface of spec.md §6.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run a consensus simulator node",
		PreRunE: loadRunConfig,
		RunE:    runNode,
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("node-id", -1, "This node's id in [0, N) (required)")
	cmd.Flags().Int("num-peers", config.DefaultNumPeers, "Size N of the cluster")
	cmd.Flags().String("consensus", "", "pow or hybrid (required)")
	cmd.Flags().String("scenario", "", "delays or partition (required)")
	cmd.Flags().Uint64("seed", config.DefaultSeed, "Run seed")
	cmd.Flags().String("config-dir", config.DefaultConfigDir, "Directory holding pow_config.json / hybrid_config.json")
	cmd.Flags().String("log-level", config.DefaultLogLevel, "DEBUG, INFO, WARN, ERROR")
	cmd.Flags().String("log-dir", "logs", "Directory for per-node log files")
	cmd.Flags().Duration("run-budget", config.DefaultRunBudget, "How long the node runs before a clean shutdown")
	cmd.Flags().String("service-addr", "", "Optional IP:Port for the read-only debug HTTP API")
}

func loadRunConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.Unmarshal(rootConfig); err != nil {
		return err
	}

	if rootConfig.NodeID < 0 {
		return errors.New("--node-id is required")
	}
	if rootConfig.Consensus != config.ConsensusPow && rootConfig.Consensus != config.ConsensusHybrid {
		return errors.Errorf("--consensus must be %q or %q", config.ConsensusPow, config.ConsensusHybrid)
	}
	if rootConfig.Scenario != config.ScenarioDelays && rootConfig.Scenario != config.ScenarioPartition {
		return errors.Errorf("--scenario must be %q or %q", config.ScenarioDelays, config.ScenarioPartition)
	}

	powCfg, err := config.LoadPowConfig(rootConfig.ConfigDir)
	if err != nil {
		return errors.Wrap(err, "loading pow_config.json")
	}
	rootConfig.Pow = powCfg

	if rootConfig.Consensus == config.ConsensusHybrid {
		hybridCfg, err := config.LoadHybridConfig(rootConfig.ConfigDir, powCfg.FinalityDepth)
		if err != nil {
			return errors.Wrap(err, "loading hybrid_config.json")
		}
		rootConfig.Hybrid = hybridCfg
	}

	return nil
}

func runNode(cmd *cobra.Command, args []string) error {
	logger := rootConfig.Logger().WithField("node_id", rootConfig.NodeID)

	peerSet := peers.NewPeerSet(rootConfig.NumPeers)
	self := peerSet.ByID[rootConfig.NodeID]
	if self == nil {
		return errors.Errorf("node-id %d is outside [0, %d)", rootConfig.NodeID, rootConfig.NumPeers)
	}

	var engine consensus.Engine
	var finalityDepth int
	switch rootConfig.Consensus {
	case config.ConsensusPow:
		engine = pow.New(rootConfig.NodeID, pow.Config{
			Difficulty:    rootConfig.Pow.Difficulty,
			BlockTimeMs:   rootConfig.Pow.BlockTimeMs,
			FinalityDepth: rootConfig.Pow.FinalityDepth,
		})
		finalityDepth = rootConfig.Pow.FinalityDepth
	case config.ConsensusHybrid:
		engine = hybrid.New(rootConfig.NodeID, hybrid.Config{
			Stakes:          rootConfig.Hybrid.Stakes,
			LightDifficulty: rootConfig.Hybrid.LightDifficulty,
			LeaderTimeoutMs: rootConfig.Hybrid.LeaderTimeoutMs,
			BlockTimeMs:     rootConfig.Hybrid.BlockTimeMs,
			FinalityDepth:   rootConfig.Hybrid.FinalityDepth,
		})
		finalityDepth = rootConfig.Hybrid.FinalityDepth
	}

	var validate chain.ValidateFunc
	var score chain.ScoreFunc
	switch e := engine.(type) {
	case *pow.Engine:
		validate = e.Validate
		score = e.Score
	case *hybrid.Engine:
		validate = e.Validate
		score = e.Score
	}

	store := chain.New(finalityDepth, validate, score)

	gossipPeers := make([]gossip.Peer, 0, peerSet.Len())
	peerIDs := make([]int, 0, peerSet.Len()-1)
	for _, p := range peerSet.Peers {
		gossipPeers = append(gossipPeers, gossip.Peer{ID: p.ID, Addr: p.NetAddr})
		if p.ID != rootConfig.NodeID {
			peerIDs = append(peerIDs, p.ID)
		}
	}

	transport := gossip.NewTransport(rootConfig.NodeID, self.NetAddr, logger)
	if err := transport.Listen(gossipPeers); err != nil {
		return errors.Wrap(err, "starting gossip transport")
	}

	if rootConfig.ServiceAddr != "" {
		svc := service.NewService(rootConfig.ServiceAddr, store, peerSet, logger)
		go svc.Serve()
	}

	var scen scenario.Controller
	if rootConfig.Scenario == config.ScenarioPartition {
		groupA, groupB := scenario.Split(rootConfig.NumPeers)
		scen = scenario.NewPartitionController(rootConfig.NodeID, groupA, groupB, scenario.DefaultHeal)
	} else {
		scen = scenario.NewDelayController(rootConfig.Seed, peerIDs)
	}

	n := node.New(rootConfig.NodeID, logger, store, engine, transport, scen, peerSet, rootConfig.RunBudget)
	return n.Run()
}
