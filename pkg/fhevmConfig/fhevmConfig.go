// Package fhevmConfig selects the protocol configuration matching a chain id
// from a configuration set, and ships a bundled set for SDK bundles that do
// not provide their own.
package fhevmConfig

import (
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

//go:embed networks.yaml
var bundledNetworks []byte

// FallbackTable maps a chain id to the name of the configuration used when
// no configuration embeds that chain id.
type FallbackTable map[uint64]string

// LegacyFallbacks covers bundles published before configurations embedded
// their chain id.
var LegacyFallbacks = FallbackTable{
	11155111: "SepoliaConfig",
}

type rawPublicKey struct {
	ID   string `yaml:"id"`
	Data string `yaml:"data"`
}

type rawConfig struct {
	ChainID                                   uint64        `yaml:"chain_id"`
	GatewayChainID                            uint64        `yaml:"gateway_chain_id"`
	ACLContractAddress                        string        `yaml:"acl_contract_address"`
	KMSContractAddress                        string        `yaml:"kms_contract_address"`
	InputVerifierContractAddress              string        `yaml:"input_verifier_contract_address"`
	VerifyingContractAddressDecryption        string        `yaml:"verifying_contract_address_decryption"`
	VerifyingContractAddressInputVerification string        `yaml:"verifying_contract_address_input_verification"`
	RelayerURL                                string        `yaml:"relayer_url"`
	PublicKey                                 *rawPublicKey `yaml:"public_key"`
}

type rawConfigSet struct {
	Configs map[string]rawConfig `yaml:"configs"`
}

// Bundled returns the embedded configuration set.
func Bundled() (map[string]*fhevm.ProtocolConfig, error) {
	return ParseConfigSet(bundledNetworks)
}

// ParseConfigSet decodes a YAML configuration set. Malformed addresses are
// reported as InvalidConfig.
func ParseConfigSet(data []byte) (map[string]*fhevm.ProtocolConfig, error) {
	var raw rawConfigSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fhevmErrors.New(fhevmErrors.KindInvalidConfig, "failed to parse configuration set", err)
	}
	out := make(map[string]*fhevm.ProtocolConfig, len(raw.Configs))
	for name, rc := range raw.Configs {
		cfg, err := rc.toProtocolConfig(name)
		if err != nil {
			return nil, err
		}
		out[name] = cfg
	}
	return out, nil
}

func (rc rawConfig) toProtocolConfig(name string) (*fhevm.ProtocolConfig, error) {
	cfg := &fhevm.ProtocolConfig{
		Name:           name,
		ChainID:        rc.ChainID,
		GatewayChainID: rc.GatewayChainID,
		RelayerURL:     rc.RelayerURL,
	}
	fields := []struct {
		field string
		value string
		dst   *common.Address
	}{
		{"acl_contract_address", rc.ACLContractAddress, &cfg.ACLContractAddress},
		{"kms_contract_address", rc.KMSContractAddress, &cfg.KMSContractAddress},
		{"input_verifier_contract_address", rc.InputVerifierContractAddress, &cfg.InputVerifierContractAddress},
		{"verifying_contract_address_decryption", rc.VerifyingContractAddressDecryption, &cfg.VerifyingContractAddressDecryption},
		{"verifying_contract_address_input_verification", rc.VerifyingContractAddressInputVerification, &cfg.VerifyingContractAddressInputVerification},
	}
	for _, f := range fields {
		addr, err := ParseAddress(f.value)
		if err != nil {
			return nil, fhevmErrors.New(fhevmErrors.KindInvalidConfig, fmt.Sprintf("config %q: %s", name, f.field), err)
		}
		*f.dst = addr
	}
	if rc.PublicKey != nil {
		data, err := hex.DecodeString(strings.TrimPrefix(rc.PublicKey.Data, "0x"))
		if err != nil {
			return nil, fhevmErrors.New(fhevmErrors.KindInvalidConfig, fmt.Sprintf("config %q: public_key.data", name), err)
		}
		cfg.PublicKey = &fhevm.PublicKeyMaterial{ID: rc.PublicKey.ID, Data: data}
	}
	return cfg, nil
}

// ParseAddress validates and parses a hex address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q is not a valid address", s)
	}
	return common.HexToAddress(s), nil
}

// SupportedChainIDs lists the distinct chain ids embedded in configs, sorted.
func SupportedChainIDs(configs map[string]*fhevm.ProtocolConfig) []uint64 {
	ids := make(map[uint64]struct{})
	for _, c := range configs {
		if c != nil && c.ChainID != 0 {
			ids[c.ChainID] = struct{}{}
		}
	}
	return util.SortedKeys(ids)
}

// Select returns the configuration whose embedded chain id equals chainID.
// When none matches, the fallback table is consulted; the fallback entry is
// returned as a copy carrying chainID.
func Select(configs map[string]*fhevm.ProtocolConfig, chainID uint64, fallbacks FallbackTable) (*fhevm.ProtocolConfig, error) {
	for _, name := range util.SortedKeys(configs) {
		if c := configs[name]; c != nil && c.ChainID == chainID {
			return c, nil
		}
	}

	if name, ok := fallbacks[chainID]; ok {
		if c := configs[name]; c != nil {
			cp := *c
			cp.ChainID = chainID
			return &cp, nil
		}
	}

	return nil, fhevmErrors.Newf(fhevmErrors.KindUnsupportedChain,
		"chain id %d is not supported, supported chain ids: %s", chainID, FormatChainIDs(SupportedChainIDs(configs)))
}

// FormatChainIDs renders chain ids as a comma separated list.
func FormatChainIDs(ids []uint64) string {
	parts := util.Map(ids, func(id uint64, _ uint64) string {
		return fmt.Sprintf("%d", id)
	})
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
