package withdraw

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/signing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/shopspring/decimal"
)

const evmTransferGasLimit = 21000

var weiPerEther = decimal.New(1, 18)

// EVMHandler settles native-asset withdrawals on an EVM chain through a
// JSON-RPC node. ERC-20 transfers are out of scope; the handler moves the
// chain's native asset only.
type EVMHandler struct {
	chain    string
	feeAsset string
	chainId  *big.Int
	client   *ethclient.Client
	from     ethcommon.Address
}

// NewEVMHandler dials the node and verifies the configured chain id
// matches what the node reports.
func NewEVMHandler(ctx context.Context, chain, feeAsset, rpcURL, fromAddress string, chainId int64) (*EVMHandler, error) {
	if !ethcommon.IsHexAddress(fromAddress) {
		return nil, fmt.Errorf("invalid source address %q for chain %s", fromAddress, chain)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("unable to dial %s node: %w", chain, err)
	}

	reported, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to read chain id from %s node: %w", chain, err)
	}
	if reported.Int64() != chainId {
		client.Close()
		return nil, fmt.Errorf("%s node reports chain id %d, configured %d", chain, reported.Int64(), chainId)
	}

	return &EVMHandler{
		chain:    chain,
		feeAsset: feeAsset,
		chainId:  big.NewInt(chainId),
		client:   client,
		from:     ethcommon.HexToAddress(fromAddress),
	}, nil
}

func (h *EVMHandler) Chain() string {
	return h.chain
}

func (h *EVMHandler) Close() {
	h.client.Close()
}

func (h *EVMHandler) ValidateAddress(address string) bool {
	return ethcommon.IsHexAddress(address)
}

func (h *EVMHandler) EstimateFee(ctx context.Context, asset, destination string, amount decimal.Decimal) (*models.FeeEstimate, error) {
	gasPrice, err := h.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to suggest gas price on %s: %w", h.chain, err)
	}

	feeWei := new(big.Int).Mul(gasPrice, big.NewInt(evmTransferGasLimit))
	return &models.FeeEstimate{
		Asset:                 h.feeAsset,
		Amount:                decimal.NewFromBigInt(feeWei, 0).Div(weiPerEther),
		Priority:              "standard",
		EstimatedConfirmation: 30 * time.Second,
	}, nil
}

func (h *EVMHandler) BuildTransaction(ctx context.Context, w *models.Withdrawal, keyId string) (*UnsignedTransaction, error) {
	nonce, err := h.client.PendingNonceAt(ctx, h.from)
	if err != nil {
		return nil, fmt.Errorf("unable to read nonce for %s: %w", h.from.Hex(), err)
	}

	gasPrice, err := h.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to suggest gas price on %s: %w", h.chain, err)
	}

	valueWei := w.Amount.Mul(weiPerEther).BigInt()
	to := ethcommon.HexToAddress(w.Destination)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    valueWei,
		Gas:      evmTransferGasLimit,
		GasPrice: gasPrice,
	})

	payload, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return nil, fmt.Errorf("unable to encode transaction: %w", err)
	}

	signer := types.LatestSignerForChainID(h.chainId)
	return &UnsignedTransaction{
		Chain:   h.chain,
		Payload: payload,
		SigningRequest: signing.Request{
			Chain:       h.chain,
			KeyId:       keyId,
			MessageHash: signer.Hash(tx).Bytes(),
		},
	}, nil
}

func (h *EVMHandler) ApplySignature(unsigned *UnsignedTransaction, sig *signing.Result) (*SignedTransaction, error) {
	var tx types.Transaction
	if err := rlp.DecodeBytes(unsigned.Payload, &tx); err != nil {
		return nil, fmt.Errorf("unable to decode unsigned transaction: %w", err)
	}
	if sig.RecoveryParam < 0 {
		return nil, fmt.Errorf("backend returned no recovery param; cannot assemble %s transaction", h.chain)
	}

	fullSig := make([]byte, 65)
	copy(fullSig, sig.Signature)
	fullSig[64] = byte(sig.RecoveryParam)

	signer := types.LatestSignerForChainID(h.chainId)
	signed, err := tx.WithSignature(signer, fullSig)
	if err != nil {
		return nil, fmt.Errorf("unable to apply signature: %w", err)
	}

	payload, err := rlp.EncodeToBytes(signed)
	if err != nil {
		return nil, fmt.Errorf("unable to encode signed transaction: %w", err)
	}

	return &SignedTransaction{
		Chain:   h.chain,
		Payload: payload,
		TxId:    signed.Hash().Hex(),
	}, nil
}

func (h *EVMHandler) BroadcastTransaction(ctx context.Context, signedTx *SignedTransaction) error {
	var tx types.Transaction
	if err := rlp.DecodeBytes(signedTx.Payload, &tx); err != nil {
		return fmt.Errorf("unable to decode signed transaction: %w", err)
	}
	if err := h.client.SendTransaction(ctx, &tx); err != nil {
		return fmt.Errorf("broadcast to %s failed: %w", h.chain, err)
	}
	return nil
}

func (h *EVMHandler) Confirmations(ctx context.Context, txId string) (int, error) {
	receipt, err := h.client.TransactionReceipt(ctx, ethcommon.HexToHash(txId))
	if err != nil {
		return 0, fmt.Errorf("unable to read receipt for %s: %w", txId, err)
	}

	tip, err := h.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("unable to read block number on %s: %w", h.chain, err)
	}

	confirmations := int64(tip) - receipt.BlockNumber.Int64() + 1
	if confirmations < 0 {
		confirmations = 0
	}
	return int(confirmations), nil
}
