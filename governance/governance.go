// Package governance is the read-model of the network governance contract:
// the token registry, group creation and the group to validator binding.
// The core packages only read from it; the registration entry points are for
// the node operator.  Registrations are mirrored into the history DB when
// one is attached.
package governance

import (
	"tokamak-group-rollup/common"
	"tokamak-group-rollup/database/historydb"
	"tokamak-group-rollup/database/statedb"
	"tokamak-group-rollup/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// Governance gives read access to the governed parameters of the rollup
type Governance struct {
	state *statedb.StateDB
	// history receives the audit trail of registrations; may be nil
	history *historydb.HistoryDB
}

// New creates a Governance view over the contract state
func New(state *statedb.StateDB, history *historydb.HistoryDB) *Governance {
	return &Governance{state: state, history: history}
}

// CreateGroup registers a new group with its immutable validator binding and
// genesis block.  The whitelist only applies when the group is permissioned.
func (g *Governance) CreateGroup(group *common.Group,
	genesis *common.StoredBlockInfo, whitelist []ethCommon.Address) error {
	if err := g.state.CreateGroup(group, genesis, whitelist); err != nil {
		return common.Wrap(err)
	}
	if g.history != nil {
		if err := g.history.AddGroup(group); err != nil {
			log.Warnw("HistoryDB.AddGroup", "group", group.GroupID, "err", err)
		}
	}
	log.Infow("group created", "group", group.GroupID,
		"validator", group.ValidatorAddr.Hex(), "verifierIdx", group.VerifierIdx)
	return nil
}

// RegisterToken adds a token to the registry.  Token ids are assigned by the
// governance contract and never reused, so a taken id is rejected.
func (g *Governance) RegisterToken(token *common.Token) error {
	exists, err := g.state.TokenExists(token.TokenID)
	if err != nil {
		return common.Wrap(err)
	}
	if exists {
		return common.Wrap(common.ErrTokenAlreadyRegistered)
	}
	tx, err := g.state.NewTx()
	if err != nil {
		return common.Wrap(err)
	}
	if err := statedb.PutToken(tx, token); err != nil {
		return common.Wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return common.Wrap(err)
	}
	if g.history != nil {
		if err := g.history.AddToken(token); err != nil {
			log.Warnw("HistoryDB.AddToken", "token", token.TokenID, "err", err)
		}
	}
	log.Infow("token registered", "token", token.TokenID, "symbol", token.Symbol,
		"addr", token.EthAddr.Hex())
	return nil
}

// Token retrieves a registered token
func (g *Governance) Token(id common.TokenID) (*common.Token, error) {
	return g.state.GetToken(id)
}

// TokenExists returns true if the token id is registered
func (g *Governance) TokenExists(id common.TokenID) (bool, error) {
	return g.state.TokenExists(id)
}

// Validator returns the validator address bound to the group.  The binding
// is set at group creation and never reassigned.
func (g *Governance) Validator(groupID common.GroupID) (ethCommon.Address, error) {
	group, err := g.state.GetGroup(groupID)
	if err != nil {
		return ethCommon.Address{}, common.Wrap(err)
	}
	return group.ValidatorAddr, nil
}

// RequireValidator checks that caller is the validator bound to the group
func (g *Governance) RequireValidator(group *common.Group, caller ethCommon.Address) error {
	if group.ValidatorAddr != caller {
		return common.Wrap(common.ErrNotValidator)
	}
	return nil
}
