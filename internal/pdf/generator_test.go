package pdf

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/egreed-contracts/internal/model"
)

func signaturePNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 12))
	for x := 0; x < 40; x++ {
		img.Set(x, 6, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestGenerateRendersSignedContract(t *testing.T) {
	signedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clientSig := signaturePNG(t)
	devSig := signaturePNG(t)
	phone := "+250788000000"
	description := "Install and configure 40 telemetry units."

	doc, err := NewGenerator("Egreed Technology").Generate(model.Contract{
		ID:                 uuid.New(),
		ContractRef:        "EG-IoT-2026-001",
		Title:              "Fleet telemetry rollout",
		Description:        &description,
		Amount:             1500,
		Currency:           "USD",
		Status:             model.ContractStatusFullySigned,
		PaymentStatus:      model.PaymentStatusPending,
		ClientSignature:    &clientSig,
		ClientSignedAt:     &signedAt,
		DeveloperSignature: &devSig,
		DeveloperSignedAt:  &signedAt,
		Client:             &model.Client{FullName: "Ingrid Mukamana", Email: "ingrid@example.com", Phone: &phone},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
	assert.Contains(t, string(doc), "/Subtype /Image")
}

func TestGenerateToleratesUnreadableSignature(t *testing.T) {
	garbage := "data:image/png;base64,AAAA"
	notAnImage := "typed: A. Client"

	doc, err := NewGenerator("Egreed Technology").Generate(model.Contract{
		ContractRef:        "EG-IoT-2026-002",
		Title:              "Sensor maintenance",
		Amount:             200,
		Currency:           "RWF",
		Status:             model.ContractStatusFullySigned,
		ClientSignature:    &garbage,
		DeveloperSignature: &notAnImage,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestDecodeSignature(t *testing.T) {
	_, err := decodeSignature("data:image/jpeg;base64,AAAA")
	assert.ErrorIs(t, err, errNotImage)

	raw, err := decodeSignature(signaturePNG(t))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")))
}
