// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/ava-labs/favoritesvm/favoritesvm"
)

// Client defines favoritesvm client operations.
type Client interface {
	// IssueTx submits a signed tx for inclusion in a block
	IssueTx(ctx context.Context, tx *favoritesvm.Tx) (ids.ID, error)

	// IssueRawTx submits the bytes of a signed tx
	IssueRawTx(ctx context.Context, txBytes []byte) (ids.ID, error)

	// GetFavorites fetches the accepted record of [user]
	GetFavorites(ctx context.Context, user favoritesvm.PublicKey) (*favoritesvm.GetFavoritesReply, error)

	// DeriveAddress returns where [user]'s record lives and its bump
	DeriveAddress(ctx context.Context, user favoritesvm.PublicKey) (favoritesvm.Address, uint8, error)

	// GetBlock fetches the contents of a block
	GetBlock(ctx context.Context, blockID *ids.ID) (*favoritesvm.GetBlockReply, error)
}

// New creates a new client object for the chain API served at [uri].
func New(uri string) Client {
	req := rpc.NewEndpointRequester(uri)
	return &client{req: req}
}

type client struct {
	req rpc.EndpointRequester
}

func (cli *client) IssueTx(ctx context.Context, tx *favoritesvm.Tx) (ids.ID, error) {
	return cli.IssueRawTx(ctx, tx.Bytes())
}

func (cli *client) IssueRawTx(ctx context.Context, txBytes []byte) (ids.ID, error) {
	txStr, err := formatting.Encode(formatting.Hex, txBytes)
	if err != nil {
		return ids.Empty, err
	}

	resp := new(favoritesvm.IssueTxReply)
	err = cli.req.SendRequest(ctx,
		"favoritesvm.issueTx",
		&favoritesvm.IssueTxArgs{Tx: txStr},
		resp,
	)
	if err != nil {
		return ids.Empty, err
	}
	return resp.TxID, nil
}

func (cli *client) GetFavorites(ctx context.Context, user favoritesvm.PublicKey) (*favoritesvm.GetFavoritesReply, error) {
	resp := new(favoritesvm.GetFavoritesReply)
	err := cli.req.SendRequest(ctx,
		"favoritesvm.getFavorites",
		&favoritesvm.UserArgs{User: user.String()},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) DeriveAddress(ctx context.Context, user favoritesvm.PublicKey) (favoritesvm.Address, uint8, error) {
	resp := new(favoritesvm.DeriveAddressReply)
	err := cli.req.SendRequest(ctx,
		"favoritesvm.deriveAddress",
		&favoritesvm.UserArgs{User: user.String()},
		resp,
	)
	if err != nil {
		return favoritesvm.Address{}, 0, err
	}
	return resp.Address, uint8(resp.Bump), nil
}

func (cli *client) GetBlock(ctx context.Context, blockID *ids.ID) (*favoritesvm.GetBlockReply, error) {
	resp := new(favoritesvm.GetBlockReply)
	err := cli.req.SendRequest(ctx,
		"favoritesvm.getBlock",
		&favoritesvm.GetBlockArgs{ID: blockID},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
