package httpimpl

import (
	"net/http"
	"strings"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonSerializer replaces echo's encoding/json serializer.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}

	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i interface{}) error {
	if err := json.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}

	return nil
}

func parseAddress(name, value string) (model.Address, error) {
	if !common.IsHexAddress(value) {
		return model.ZeroAddress, errors.NewInvalidArgumentError("%s %q is not a hex address", name, value)
	}

	return common.HexToAddress(value), nil
}

// parseUint256 accepts decimal or 0x-prefixed hex.
func parseUint256(name, value string) (*uint256.Int, error) {
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
		return nil, errors.NewInvalidArgumentError("%s %q is not a 256-bit unsigned integer", name, value, err)
	}

	return v, nil
}

// reservationParams reads the :owner and :nonce path parameters.
func reservationParams(c echo.Context) (model.Address, *uint256.Int, error) {
	owner, err := parseAddress("owner", c.Param("owner"))
	if err != nil {
		return model.ZeroAddress, nil, err
	}

	nonce, err := parseUint256("nonce", c.Param("nonce"))
	if err != nil {
		return model.ZeroAddress, nil, err
	}

	return owner, nonce, nil
}

func bindBody(c echo.Context, body interface{}) error {
	if err := c.Bind(body); err != nil {
		return errors.NewInvalidArgumentError("invalid request body", err)
	}

	return nil
}

func requireSubmitter(submitter model.Address) error {
	if submitter == model.ZeroAddress {
		return errors.NewInvalidArgumentError("submitter is required")
	}

	return nil
}
