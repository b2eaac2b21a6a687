package main

import (
	"crypto/ecdsa"
	"strings"

	"github.com/bsv-blockchain/escrowledger/authorization"
	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newApp() *cli.App {
	tSettings := settings.NewSettings()

	bindingFlags := []cli.Flag{
		&cli.Uint64Flag{
			Name:  "chain-id",
			Usage: "chain id the signature is bound to",
			Value: tSettings.Escrow.ChainID,
		},
		&cli.StringFlag{
			Name:  "contract",
			Usage: "ledger contract address the signature is bound to",
			Value: tSettings.Escrow.ContractAddress,
		},
		&cli.StringFlag{
			Name:  "scheme",
			Usage: "signature scheme",
			Value: tSettings.Escrow.SignatureScheme,
		},
		&cli.StringFlag{
			Name:     "key",
			Usage:    "hex secp256k1 private key of the signer",
			Required: true,
			EnvVars:  []string{"ESCROW_KEY"},
		},
	}

	domainFlags := append([]cli.Flag{
		&cli.StringFlag{Name: "recipient", Usage: "recipient address", Required: true},
		&cli.StringFlag{Name: "amount", Usage: "amount, decimal or 0x-hex", Required: true},
		&cli.StringFlag{Name: "fee", Usage: "fee, decimal or 0x-hex", Value: "0"},
		&cli.StringFlag{Name: "nonce", Usage: "nonce, decimal or 0x-hex", Required: true},
	}, bindingFlags...)

	closeFlags := append([]cli.Flag{
		&cli.StringFlag{Name: "owner", Usage: "owner of the reservation", Required: true},
		&cli.StringFlag{Name: "nonce", Usage: "reservation nonce, decimal or 0x-hex", Required: true},
	}, bindingFlags...)

	return &cli.App{
		Name:  "escrowcli",
		Usage: "Create keys and sign escrow ledger authorizations",
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "Generate a secp256k1 key and print it with its address",
				Action: keygen,
			},
			{
				Name:   "address",
				Usage:  "Print the address of a private key",
				Action: address,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Usage:    "hex secp256k1 private key",
						Required: true,
						EnvVars:  []string{"ESCROW_KEY"},
					},
				},
			},
			{
				Name:   "sign-reserve",
				Usage:  "Sign a reservation and print the reserve request body",
				Action: signReserve,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "executor", Usage: "executor address", Required: true},
					&cli.Uint64Flag{Name: "expiry", Usage: "expiry block", Required: true},
				}, domainFlags...),
			},
			{
				Name:   "sign-transfer",
				Usage:  "Sign a transfer and print the signed transfer request body",
				Action: signTransfer,
				Flags:  domainFlags,
			},
			{
				Name:   "sign-execute",
				Usage:  "Sign the execution of a reservation as its submitter",
				Action: signClose(authorization.DomainExecute),
				Flags:  closeFlags,
			},
			{
				Name:   "sign-reclaim",
				Usage:  "Sign the reclaim of a reservation as its submitter",
				Action: signClose(authorization.DomainReclaim),
				Flags:  closeFlags,
			},
		},
	}
}

type keyOutput struct {
	PrivateKey string        `json:"privateKey"`
	Address    model.Address `json:"address"`
}

func keygen(c *cli.Context) error {
	key, err := authorization.GenerateKey()
	if err != nil {
		return err
	}

	return printJSON(c, &keyOutput{PrivateKey: authorization.KeyHex(key), Address: authorization.AddressOf(key)})
}

func address(c *cli.Context) error {
	key, err := authorization.ParseKey(c.String("key"))
	if err != nil {
		return err
	}

	return printJSON(c, &keyOutput{Address: authorization.AddressOf(key)})
}

type reserveOutput struct {
	Owner       model.Address `json:"owner"`
	Recipient   model.Address `json:"recipient"`
	Executor    model.Address `json:"executor"`
	Amount      *uint256.Int  `json:"amount"`
	Fee         *uint256.Int  `json:"fee"`
	Nonce       *uint256.Int  `json:"nonce"`
	ExpiryBlock uint64        `json:"expiryBlock"`
	Signature   hexutil.Bytes `json:"signature"`
}

func signReserve(c *cli.Context) error {
	codec, key, err := signingContext(c)
	if err != nil {
		return err
	}

	amounts, err := parseAmounts(c)
	if err != nil {
		return err
	}

	recipient, err := addressFlag(c, "recipient")
	if err != nil {
		return err
	}

	executor, err := addressFlag(c, "executor")
	if err != nil {
		return err
	}

	req := &model.ReserveRequest{
		Owner:       authorization.AddressOf(key),
		Recipient:   recipient,
		Executor:    executor,
		Amount:      amounts[0],
		Fee:         amounts[1],
		Nonce:       amounts[2],
		ExpiryBlock: c.Uint64("expiry"),
	}

	if req.Signature, err = codec.SignReserve(authorization.ReserveMessageFromRequest(req), key); err != nil {
		return err
	}

	return printJSON(c, &reserveOutput{
		Owner:       req.Owner,
		Recipient:   req.Recipient,
		Executor:    req.Executor,
		Amount:      req.Amount,
		Fee:         req.Fee,
		Nonce:       req.Nonce,
		ExpiryBlock: req.ExpiryBlock,
		Signature:   req.Signature,
	})
}

type transferOutput struct {
	Owner     model.Address `json:"owner"`
	Recipient model.Address `json:"recipient"`
	Amount    *uint256.Int  `json:"amount"`
	Fee       *uint256.Int  `json:"fee"`
	Nonce     *uint256.Int  `json:"nonce"`
	Signature hexutil.Bytes `json:"signature"`
}

func signTransfer(c *cli.Context) error {
	codec, key, err := signingContext(c)
	if err != nil {
		return err
	}

	amounts, err := parseAmounts(c)
	if err != nil {
		return err
	}

	recipient, err := addressFlag(c, "recipient")
	if err != nil {
		return err
	}

	req := &model.TransferRequest{
		Owner:     authorization.AddressOf(key),
		Recipient: recipient,
		Amount:    amounts[0],
		Fee:       amounts[1],
		Nonce:     amounts[2],
	}

	if req.Signature, err = codec.SignTransfer(authorization.TransferMessageFromRequest(req), key); err != nil {
		return err
	}

	return printJSON(c, &transferOutput{
		Owner:     req.Owner,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Fee:       req.Fee,
		Nonce:     req.Nonce,
		Signature: req.Signature,
	})
}

type closeOutput struct {
	Submitter model.Address `json:"submitter"`
	Signature hexutil.Bytes `json:"signature"`
}

func signClose(domain uint8) cli.ActionFunc {
	return func(c *cli.Context) error {
		codec, key, err := signingContext(c)
		if err != nil {
			return err
		}

		owner, err := addressFlag(c, "owner")
		if err != nil {
			return err
		}

		nonce, err := parseUint256Flag(c, "nonce")
		if err != nil {
			return err
		}

		sig, err := codec.SignClose(&authorization.CloseMessage{Domain: domain, Owner: owner, Nonce: nonce}, key)
		if err != nil {
			return err
		}

		return printJSON(c, &closeOutput{Submitter: authorization.AddressOf(key), Signature: sig})
	}
}

func signingContext(c *cli.Context) (*authorization.Codec, *ecdsa.PrivateKey, error) {
	contract, err := addressFlag(c, "contract")
	if err != nil {
		return nil, nil, err
	}

	codec, err := authorization.NewCodec(c.Uint64("chain-id"), contract, c.String("scheme"))
	if err != nil {
		return nil, nil, err
	}

	key, err := authorization.ParseKey(c.String("key"))
	if err != nil {
		return nil, nil, err
	}

	return codec, key, nil
}

// parseAmounts returns amount, fee and nonce.
func parseAmounts(c *cli.Context) ([3]*uint256.Int, error) {
	var out [3]*uint256.Int

	for i, name := range []string{"amount", "fee", "nonce"} {
		v, err := parseUint256Flag(c, name)
		if err != nil {
			return out, err
		}

		out[i] = v
	}

	return out, nil
}

func parseUint256Flag(c *cli.Context, name string) (*uint256.Int, error) {
	value := c.String(name)

	var (
		v   *uint256.Int
		err error
	)

	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		v, err = uint256.FromHex(value)
	} else {
		v, err = uint256.FromDecimal(value)
	}

	if err != nil {
		return nil, errors.NewInvalidArgumentError("--%s %q is not a 256-bit unsigned integer", name, value, err)
	}

	return v, nil
}

func addressFlag(c *cli.Context, name string) (model.Address, error) {
	value := c.String(name)
	if !common.IsHexAddress(value) {
		return model.ZeroAddress, errors.NewInvalidArgumentError("--%s %q is not a hex address", name, value)
	}

	return common.HexToAddress(value), nil
}

func printJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
