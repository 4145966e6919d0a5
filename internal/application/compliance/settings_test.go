package compliance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/internal/application/compliance"
	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/memory"
	"github.com/jhoicas/agro-pos-api/pkg/secret"
)

func TestSettingsSaveSealsSecrets(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	box := secret.FromPassphrase("test")
	uc := compliance.NewSettingsUseCase(store.EInvoiceConfigs(), box)

	out, err := uc.Save(ctx, merchantID, dto.EInvoiceConfigRequest{
		Enabled: true, GSTIN: "27aapfu0939f1zv", Username: "krishi_api", Password: "p@ss",
		ClientID: "cid", ClientSecret: "csecret", AutoGenerate: true, ThresholdOverride: "1000",
	})
	require.NoError(t, err)
	assert.True(t, out.PasswordSet)
	assert.True(t, out.ClientSecretSet)
	assert.Equal(t, "27AAPFU0939F1ZV", out.GSTIN)
	assert.Equal(t, "1000.00", out.ThresholdOverride)

	stored, err := store.EInvoiceConfigs().Get(ctx, merchantID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, "p@ss", stored.PasswordSealed)
	plain, err := box.Open(stored.PasswordSealed)
	require.NoError(t, err)
	assert.Equal(t, "p@ss", plain)

	// Secretos vacíos al actualizar conservan los valores sellados.
	_, err = uc.Save(ctx, merchantID, dto.EInvoiceConfigRequest{
		Enabled: true, GSTIN: "27AAPFU0939F1ZV", Username: "krishi_api", ClientID: "cid2",
	})
	require.NoError(t, err)
	again, err := store.EInvoiceConfigs().Get(ctx, merchantID)
	require.NoError(t, err)
	assert.Equal(t, stored.PasswordSealed, again.PasswordSealed)
	assert.Equal(t, "cid2", again.ClientID)
	assert.False(t, again.ThresholdOverride.Valid)
}

func TestSettingsRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := compliance.NewSettingsUseCase(store.EInvoiceConfigs(), secret.FromPassphrase("test"))

	_, err := uc.Save(ctx, merchantID, dto.EInvoiceConfigRequest{GSTIN: "27AAPFU0939F1ZA", Username: "u", ClientID: "c"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.Save(ctx, merchantID, dto.EInvoiceConfigRequest{Enabled: true, GSTIN: "27AAPFU0939F1ZV", Username: "u", ClientID: "c"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "enabling needs both secrets")

	_, err = uc.Save(ctx, merchantID, dto.EInvoiceConfigRequest{GSTIN: "27AAPFU0939F1ZV", Username: "u", ClientID: "c", ThresholdOverride: "-5"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.Get(ctx, "m-none")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
