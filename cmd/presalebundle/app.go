package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/ligun0805/presale-bundle/internal/bundlecore"
	"github.com/ligun0805/presale-bundle/internal/chain"
	"github.com/ligun0805/presale-bundle/internal/config"
	"github.com/ligun0805/presale-bundle/internal/flashbots"
	"github.com/ligun0805/presale-bundle/internal/presale"
)

// app holds the adapters every subcommand needs.
type app struct {
	settings config.Settings
	core     bundlecore.Config
	chain    *chain.Client
	contract *presale.Contract
	relay    *flashbots.Client
	signer   *bundlecore.Signer
	log      logrus.FieldLogger
}

// startupErr tags a failed node read, or ErrAborted when ctx ended first.
func startupErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", bundlecore.ErrAborted, err)
	}
	return fmt.Errorf("%w: %w", bundlecore.ErrChainRead, err)
}

func newApp(ctx context.Context, st config.Settings, log logrus.FieldLogger) (*app, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}

	keyHex := st.PrivateKeyHex
	if keyHex == "" {
		if !stdinIsTerminal() {
			return nil, fmt.Errorf("%w: private_key is required", bundlecore.ErrConfiguration)
		}
		var err error
		if keyHex, err = readPassword("Owner private key: "); err != nil {
			return nil, fmt.Errorf("%w: %w", bundlecore.ErrConfiguration, err)
		}
	}
	signer, err := bundlecore.NewSignerFromHex(keyHex, log)
	if err != nil {
		return nil, err
	}

	cc, err := chain.Dial(ctx, st.RPCURL, log)
	if err != nil {
		return nil, startupErr(ctx, err)
	}

	var nodeChainID *big.Int
	if st.ChainID == "" {
		if nodeChainID, err = cc.ChainID(ctx); err != nil {
			cc.Close()
			return nil, startupErr(ctx, err)
		}
	}
	core, err := st.CoreConfig(nodeChainID)
	if err != nil {
		cc.Close()
		return nil, err
	}

	contract, err := presale.NewContract(core.Contract, cc.Backend(), log)
	if err != nil {
		cc.Close()
		return nil, err
	}
	relay, err := flashbots.NewClient(st.RelayURL, st.FlashbotsAuthPKHex, log)
	if err != nil {
		cc.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"rpc":         st.RPCURL,
		"chain_id":    core.ChainID.String(),
		"contract":    core.Contract.Hex(),
		"relay":       st.RelayURL,
		"owner_key":   maskHex(keyHex),
		"sender":      signer.Address().Hex(),
		"relay_auth":  relay.AuthAddress().Hex(),
		"gas_premium": core.GasPremium.FloatString(4),
	}).Info("Configuration loaded")

	return &app{
		settings: st,
		core:     core,
		chain:    cc,
		contract: contract,
		relay:    relay,
		signer:   signer,
		log:      log,
	}, nil
}

func (a *app) orchestrator(sink bundlecore.EventSink) (*bundlecore.Orchestrator, error) {
	return bundlecore.NewOrchestrator(a.core, bundlecore.Deps{
		Chain:  a.chain,
		Status: a.contract,
		Relay:  a.relay,
		Calls:  a.contract,
		Signer: a.signer,
		Sink:   sink,
	}, a.log)
}

func (a *app) Close() {
	a.chain.Close()
}
