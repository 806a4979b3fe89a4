package mockInstance

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	contractAddr = common.HexToAddress("0x1234567890123456789012345678901234567890")
	startTime    = time.Unix(1_700_000_000, 0)
)

func testConfig() *fhevm.ProtocolConfig {
	return &fhevm.ProtocolConfig{
		Name:                               "hardhat",
		ChainID:                            31337,
		GatewayChainID:                     55815,
		ACLContractAddress:                 common.HexToAddress("0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D"),
		KMSContractAddress:                 common.HexToAddress("0x1364cBBf2cDF5032C47d8226a6f6FBD2AFCDacAC"),
		InputVerifierContractAddress:       common.HexToAddress("0x901F8942346f7AB3a01F6D7613119Bca447Bb030"),
		VerifyingContractAddressDecryption: common.HexToAddress("0x5ffdaAB0373E62E2ea2944776209aEf29E631A64"),
		VerifyingContractAddressInputVerification: common.HexToAddress("0x812b06e1CDCE800494b79fFE4f925A504a9A9810"),
	}
}

// devNode answers the relayer RPC methods of a local fhevm node.
type devNode struct {
	t          *testing.T
	signers    []*ecdsa.PrivateKey
	cleartexts map[fhevm.Handle]*big.Int
	tamper     bool
	calls      map[string]int
}

func newDevNode(t *testing.T, signers int) *devNode {
	n := &devNode{t: t, cleartexts: map[fhevm.Handle]*big.Int{}, calls: map[string]int{}}
	for i := 0; i < signers; i++ {
		k, err := crypto.GenerateKey()
		require.NoError(t, err)
		n.signers = append(n.signers, k)
	}
	return n
}

func (n *devNode) CallContext(ctx context.Context, result any, method string, args ...any) error {
	n.calls[method]++
	var resp any
	switch method {
	case MethodInputProof:
		req := args[0].(*inputProofRequest)
		ct, err := hexutil.Decode(req.CiphertextWithInputVerification)
		require.NoError(n.t, err)
		values, err := unpackCiphertext(ct)
		require.NoError(n.t, err)

		types := make([]fhevm.FheType, len(values))
		for i, v := range values {
			types[i] = v.Type
		}
		handles := deriveHandles(ct, types, testConfig().ACLContractAddress, 31337)
		for i, h := range handles {
			n.cleartexts[h] = values[i].Value
		}
		if n.tamper {
			handles[0][0] ^= 0xff
		}
		out := inputProofResponse{Handles: handles}
		for _, k := range n.signers {
			sig, err := crypto.Sign(crypto.Keccak256(ct), k)
			require.NoError(n.t, err)
			out.Signatures = append(out.Signatures, sig)
		}
		resp = out
	case MethodUserDecrypt:
		req := args[0].(*userDecryptRequest)
		var out []decryptedValue
		for _, p := range req.HandleContractPairs {
			if v, ok := n.cleartexts[p.Handle]; ok {
				out = append(out, decryptedValue{Handle: p.Handle, Value: (*hexutil.Big)(v)})
			}
		}
		resp = out
	default:
		return errors.New("method not found")
	}
	b, err := json.Marshal(resp)
	require.NoError(n.t, err)
	return json.Unmarshal(b, result)
}

func newInstance(t *testing.T, node *devNode) *Instance {
	i, err := New(testConfig(), node, zap.NewNop(), WithClock(func() time.Time { return startTime.Add(time.Hour) }))
	require.NoError(t, err)
	return i
}

func TestEncrypt_ProofLayout(t *testing.T) {
	node := newDevNode(t, 2)
	inst := newInstance(t, node)
	user := common.HexToAddress("0x0987654321098765432109876543210987654321")

	res, err := inst.CreateEncryptedInput(contractAddr, user).Add64(1000).Add32(12).Encrypt(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Handles, 2)

	proof := res.InputProof
	assert.Equal(t, byte(2), proof[0], "numHandles")
	assert.Equal(t, byte(2), proof[1], "numSigners")
	assert.Equal(t, res.Handles[0][:], proof[2:34])
	assert.Equal(t, res.Handles[1][:], proof[34:66])
	assert.Len(t, proof, 2+2*32+2*65+1)
	assert.Equal(t, byte(0x00), proof[len(proof)-1])

	for i, h := range res.Handles {
		assert.Equal(t, uint8(i), h.Index())
		assert.Equal(t, uint64(31337), h.ChainID())
	}
	assert.Equal(t, fhevm.TypeUint64, res.Handles[0].Type())
	assert.Equal(t, fhevm.TypeUint32, res.Handles[1].Type())
}

func TestEncrypt_SameValuesDifferentHandles(t *testing.T) {
	inst := newInstance(t, newDevNode(t, 1))
	a, err := inst.CreateEncryptedInput(contractAddr, contractAddr).Add8(1).Encrypt(context.Background())
	require.NoError(t, err)
	b, err := inst.CreateEncryptedInput(contractAddr, contractAddr).Add8(1).Encrypt(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.Handles[0], b.Handles[0])
}

func TestEncrypt_RejectsMismatchedHandles(t *testing.T) {
	node := newDevNode(t, 1)
	node.tamper = true
	inst := newInstance(t, node)

	_, err := inst.CreateEncryptedInput(contractAddr, contractAddr).Add8(1).Encrypt(context.Background())
	assert.True(t, fhevmErrors.IsKind(err, fhevmErrors.KindEncryptionFailed))
}

func TestCiphertext_RoundTrip(t *testing.T) {
	values := []fhevm.TypedValue{
		{Type: fhevm.TypeBool, Value: big.NewInt(1)},
		{Type: fhevm.TypeUint16, Value: big.NewInt(513)},
		{Type: fhevm.TypeAddress, Value: new(big.Int).SetBytes(contractAddr.Bytes())},
	}
	ct, err := packCiphertext(values)
	require.NoError(t, err)
	got, err := unpackCiphertext(ct)
	require.NoError(t, err)
	require.Len(t, got, len(values))
	for i := range values {
		assert.Equal(t, values[i].Type, got[i].Type)
		assert.Zero(t, values[i].Value.Cmp(got[i].Value))
	}

	_, err = packCiphertext([]fhevm.TypedValue{{Type: fhevm.TypeUint8, Value: big.NewInt(256)}})
	assert.Error(t, err)
}

func TestGenerateKeypair(t *testing.T) {
	inst := newInstance(t, newDevNode(t, 1))
	kp, err := inst.GenerateKeypair()
	require.NoError(t, err)
	assert.NoError(t, ValidateKeypair(kp))

	other, err := inst.GenerateKeypair()
	require.NoError(t, err)
	assert.Error(t, ValidateKeypair(&fhevm.Keypair{PublicKey: other.PublicKey, PrivateKey: kp.PrivateKey}))
	assert.Error(t, ValidateKeypair(&fhevm.Keypair{PublicKey: kp.PublicKey, PrivateKey: "zz"}))
}

func signRequest(t *testing.T, inst *Instance, key *ecdsa.PrivateKey, kp *fhevm.Keypair, contracts []common.Address, start, days int64) string {
	td, err := inst.CreateEIP712(kp.PublicKey, contracts, start, days)
	require.NoError(t, err)
	hash, err := fhevm.TypedDataHash(td)
	require.NoError(t, err)
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)
	sig[64] += 27
	return hexutil.Encode(sig)
}

func TestUserDecrypt(t *testing.T) {
	node := newDevNode(t, 1)
	inst := newInstance(t, node)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	user := crypto.PubkeyToAddress(key.PublicKey)

	enc, err := inst.CreateEncryptedInput(contractAddr, user).Add64(1000).Add32(12).Encrypt(context.Background())
	require.NoError(t, err)

	kp, err := inst.GenerateKeypair()
	require.NoError(t, err)
	contracts := []common.Address{contractAddr}
	start := startTime.Unix()

	req := &fhevm.UserDecryptRequest{
		Handles: []fhevm.HandleContractPair{
			{Handle: enc.Handles[0], Contract: contractAddr},
			{Handle: enc.Handles[1], Contract: contractAddr},
		},
		PrivateKey:        kp.PrivateKey,
		PublicKey:         kp.PublicKey,
		Signature:         signRequest(t, inst, key, kp, contracts, start, 7),
		ContractAddresses: contracts,
		UserAddress:       user,
		StartTimestamp:    start,
		DurationDays:      7,
	}

	out, err := inst.UserDecrypt(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), out[enc.Handles[0]].Uint64())
	assert.Equal(t, uint64(12), out[enc.Handles[1]].Uint64())
}

func TestUserDecrypt_Rejections(t *testing.T) {
	node := newDevNode(t, 1)
	inst := newInstance(t, node)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	user := crypto.PubkeyToAddress(key.PublicKey)
	kp, err := inst.GenerateKeypair()
	require.NoError(t, err)

	enc, err := inst.CreateEncryptedInput(contractAddr, user).Add8(5).Encrypt(context.Background())
	require.NoError(t, err)
	other := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	start := startTime.Unix()

	base := func() *fhevm.UserDecryptRequest {
		return &fhevm.UserDecryptRequest{
			Handles:           []fhevm.HandleContractPair{{Handle: enc.Handles[0], Contract: contractAddr}},
			PublicKey:         kp.PublicKey,
			PrivateKey:        kp.PrivateKey,
			Signature:         signRequest(t, inst, key, kp, []common.Address{contractAddr}, start, 1),
			ContractAddresses: []common.Address{contractAddr},
			UserAddress:       user,
			StartTimestamp:    start,
			DurationDays:      1,
		}
	}

	tests := []struct {
		name   string
		mutate func(r *fhevm.UserDecryptRequest)
	}{
		{"wrong user", func(r *fhevm.UserDecryptRequest) { r.UserAddress = other }},
		{"unauthorized contract", func(r *fhevm.UserDecryptRequest) { r.Handles[0].Contract = other }},
		{"expired", func(r *fhevm.UserDecryptRequest) {
			r.StartTimestamp = start - 2*86400
			r.Signature = signRequest(t, inst, key, kp, r.ContractAddresses, r.StartTimestamp, 1)
		}},
		{"duration too long", func(r *fhevm.UserDecryptRequest) { r.DurationDays = 366 }},
		{"no handles", func(r *fhevm.UserDecryptRequest) { r.Handles = nil }},
		{"foreign chain handle", func(r *fhevm.UserDecryptRequest) {
			r.Handles[0].Handle = fhevm.NewHandle(crypto.Keccak256([]byte("x")), 0, 1, fhevm.TypeUint8)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(req)
			_, err := inst.UserDecrypt(context.Background(), req)
			assert.True(t, fhevmErrors.IsKind(err, fhevmErrors.KindDecryptionFailed), err)
		})
	}
	assert.Equal(t, 0, node.calls[MethodUserDecrypt])
}

func TestNew_RequiresChainID(t *testing.T) {
	cfg := testConfig()
	cfg.ChainID = 0
	_, err := New(cfg, newDevNode(t, 0), zap.NewNop())
	assert.True(t, fhevmErrors.IsKind(err, fhevmErrors.KindInvalidConfig))
}
