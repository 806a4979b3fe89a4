package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/wallet"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1      = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

func typedData(t *testing.T) *apitypes.TypedData {
	t.Helper()
	cfg := &fhevm.ProtocolConfig{
		Name:                               "test",
		ChainID:                            31337,
		GatewayChainID:                     55815,
		VerifyingContractAddressDecryption: common.HexToAddress("0x5ffdaAB0373E62E2ea2944776209aEf29E631A64"),
	}
	td, err := fhevm.NewUserDecryptTypedData(cfg, "0xabcd",
		[]common.Address{common.HexToAddress("0x1234567890123456789012345678901234567890")}, 1700000000, 365)
	require.NoError(t, err)
	return td
}

func dynamicFeeTx(to common.Address, chainID *big.Int) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     7,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(30_000_000_000),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})
}

func Test_PrivateKeySigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := NewPrivateKeySigner("0x" + common.Bytes2Hex(crypto.FromECDSA(key)))
	require.NoError(t, err)

	addr, err := s.GetAddress()
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	t.Run("typed data", func(t *testing.T) {
		td := typedData(t)
		sig, err := s.SignTypedData(context.Background(), td)
		require.NoError(t, err)

		recovered, err := fhevm.RecoverTypedDataSigner(td, sig)
		require.NoError(t, err)
		assert.Equal(t, addr, recovered)
	})

	t.Run("no send opts", func(t *testing.T) {
		opts, err := s.GetNoSendTransactOpts(context.Background(), big.NewInt(31337))
		require.NoError(t, err)
		assert.True(t, opts.NoSend)
		assert.Equal(t, addr, opts.From)
	})

	_, err = NewPrivateKeySigner("not-a-key")
	assert.ErrorContains(t, err, "failed to parse private key")
}

// fakeKMS signs with a local secp256k1 key and answers like AWS KMS.
type fakeKMS struct {
	kmsiface.KMSAPI
	key   *ecdsa.PrivateKey
	highS bool
	signs int
}

func (f *fakeKMS) GetPublicKeyWithContext(_ aws.Context, _ *kms.GetPublicKeyInput, _ ...request.Option) (*kms.GetPublicKeyOutput, error) {
	params, err := asn1.Marshal(oidSecp256k1)
	if err != nil {
		return nil, err
	}
	pub := crypto.FromECDSAPub(&f.key.PublicKey)
	der, err := asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{Algorithm: oidPublicKeyECDSA, Parameters: asn1.RawValue{FullBytes: params}},
		PublicKey: asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	})
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{PublicKey: der}, nil
}

func (f *fakeKMS) SignWithContext(_ aws.Context, in *kms.SignInput, _ ...request.Option) (*kms.SignOutput, error) {
	f.signs++
	if aws.StringValue(in.MessageType) != kms.MessageTypeDigest {
		return nil, errors.New("expected a digest")
	}
	sig, err := crypto.Sign(in.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.highS {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	der, err := asn1.Marshal(ecdsaSignature{R: r, S: s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: der}, nil
}

func Test_AWSKMSSigner(t *testing.T) {
	for _, highS := range []bool{false, true} {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		fake := &fakeKMS{key: key, highS: highS}
		ctx := context.Background()

		s, err := NewAWSKMSSignerWithClient(ctx, fake, "alias/fhevm")
		require.NoError(t, err)
		addr, _ := s.GetAddress()
		require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

		td := typedData(t)
		sig, err := s.SignTypedData(ctx, td)
		require.NoError(t, err)
		recovered, err := fhevm.RecoverTypedDataSigner(td, sig)
		require.NoError(t, err)
		assert.Equal(t, addr, recovered, "highS=%v", highS)

		chainID := big.NewInt(11155111)
		opts, err := s.GetTransactOpts(ctx, chainID)
		require.NoError(t, err)
		signed, err := opts.Signer(opts.From, dynamicFeeTx(common.HexToAddress("0x01"), chainID))
		require.NoError(t, err)
		sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
		require.NoError(t, err)
		assert.Equal(t, addr, sender, "highS=%v", highS)

		_, err = opts.Signer(common.HexToAddress("0x02"), dynamicFeeTx(common.HexToAddress("0x01"), chainID))
		assert.ErrorContains(t, err, "address mismatch")
		assert.Equal(t, 2, fake.signs)
	}
}

func Test_ParseASN1Signature(t *testing.T) {
	_, _, err := parseASN1Signature([]byte{0x30, 0x01})
	assert.Error(t, err)

	der, err := asn1.Marshal(ecdsaSignature{R: big.NewInt(0), S: big.NewInt(5)})
	require.NoError(t, err)
	_, _, err = parseASN1Signature(der)
	assert.ErrorContains(t, err, "empty component")
}

func Test_WalletSigner(t *testing.T) {
	user := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	td := typedData(t)

	t.Run("signs", func(t *testing.T) {
		p := wallet.NewMockProvider(t)
		p.On("Request", mock.Anything, MethodSignTypedDataV4, user.Hex(), mock.AnythingOfType("string")).
			Return(json.RawMessage(`"0x1234"`), nil).Once()

		sig, err := NewWalletSigner(p, user, zap.NewNop()).SignTypedData(context.Background(), td)
		require.NoError(t, err)
		assert.Equal(t, "0x1234", sig)
	})

	t.Run("user rejection", func(t *testing.T) {
		p := wallet.NewMockProvider(t)
		p.On("Request", mock.Anything, MethodSignTypedDataV4, user.Hex(), mock.AnythingOfType("string")).
			Return(nil, errors.New("MetaMask Tx Signature: User denied message signature.")).Once()

		_, err := NewWalletSigner(p, user, zap.NewNop()).SignTypedData(context.Background(), td)
		assert.True(t, errors.Is(err, fhevmErrors.ErrSignatureDenied))
	})

	t.Run("transport failure", func(t *testing.T) {
		p := wallet.NewMockProvider(t)
		p.On("Request", mock.Anything, MethodSignTypedDataV4, user.Hex(), mock.AnythingOfType("string")).
			Return(nil, errors.New("connection refused")).Once()

		_, err := NewWalletSigner(p, user, zap.NewNop()).SignTypedData(context.Background(), td)
		require.Error(t, err)
		assert.False(t, errors.Is(err, fhevmErrors.ErrSignatureDenied))
	})
}
