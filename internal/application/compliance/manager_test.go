package compliance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/internal/application/compliance"
	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/einvoice"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

func TestCheckEligibility(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ok, err := e.mgr.CheckEligibility(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.True(t, ok.Eligible)

	walkIn, err := e.mgr.CheckEligibility(ctx, merchantID, walkInID)
	require.NoError(t, err)
	assert.False(t, walkIn.Eligible)
	assert.NotEmpty(t, walkIn.Reasons)

	_, err = e.mgr.CheckEligibility(ctx, merchantID, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerate_RegistersOnceAndIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	doc, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusGenerated, doc.Status)
	assert.Equal(t, "irn-INV2510000001", doc.IRN)
	assert.False(t, doc.ReconcileRequired)
	assert.NotEmpty(t, doc.LastAuditID)
	assert.Equal(t, 1, doc.Attempts)
	assert.Equal(t, entity.EInvoiceStatusGenerated, e.saleStatus(t, b2bSaleID))

	again, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.Equal(t, doc.IRN, again.IRN)
	assert.Equal(t, 1, e.gw.calls["generate"], "no second external call")
}

func TestGenerate_ConcurrentCallsRegisterOnceAndReleaseLocks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, e.gw.calls["generate"])
	assert.Zero(t, compliance.HeldLocks(e.mgr))
}

func TestGenerate_IneligibleSale(t *testing.T) {
	e := newEnv(t)
	_, err := e.mgr.Generate(context.Background(), merchantID, walkInID)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Zero(t, e.gw.calls["generate"])
}

func TestGenerate_RejectionIsRecordedAndRetryable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.gw.nextErr["generate"] = &domain.AuthorityRejectedError{Code: "2176", Message: "Invalid HSN code"}

	_, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	var rej *domain.AuthorityRejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "Invalid HSN code", rej.Message)
	assert.NotEmpty(t, domain.AuditRef(err))

	doc, err := e.mgr.Get(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusError, doc.Status)
	assert.False(t, doc.ReconcileRequired)
	assert.Equal(t, domain.AuditRef(rej), doc.LastAuditID)
	assert.Equal(t, entity.EInvoiceStatusError, e.saleStatus(t, b2bSaleID))

	doc, err = e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusGenerated, doc.Status)
	assert.Equal(t, 2, doc.Attempts)
	assert.Empty(t, doc.LastError)
}

func TestGenerate_TimeoutAfterAcceptanceIsReconciledOnAccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.gw.acceptThenTimeout = true

	_, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.ErrorIs(t, err, domain.ErrAuthorityUnavailable)

	stored, err := e.store.EInvoices().GetBySale(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusError, stored.Status)
	assert.True(t, stored.ReconcileRequired)

	doc, err := e.mgr.Get(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusGenerated, doc.Status)
	assert.Equal(t, "irn-INV2510000001", doc.IRN)
	assert.False(t, doc.ReconcileRequired)
	assert.Equal(t, 1, e.gw.calls["generate"])
	assert.Equal(t, 1, e.gw.calls["fetch_by_doc"])
}

func TestGenerate_TimeoutWithoutAcceptanceRetriesAfterReconcile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.gw.nextErr["generate"] = &domain.AuthorityUnavailableError{Op: "generate", Err: context.DeadlineExceeded}

	_, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.ErrorIs(t, err, domain.ErrAuthorityUnavailable)

	doc, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusGenerated, doc.Status)
	assert.Equal(t, 2, e.gw.calls["generate"])
	assert.Equal(t, 1, e.gw.calls["fetch_by_doc"], "looked up before registering again")
}

func TestGenerate_FailedReconciliationBlocksRegistration(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.gw.nextErr["generate"] = &domain.AuthorityUnavailableError{Op: "generate", Err: context.DeadlineExceeded}
	_, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.Error(t, err)

	e.gw.nextErr["fetch_by_doc"] = &domain.AuthorityUnavailableError{Op: "fetch", Err: context.DeadlineExceeded}
	_, err = e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.ErrorIs(t, err, domain.ErrAuthorityUnavailable)
	assert.Equal(t, 1, e.gw.calls["generate"])

	// Una lectura igual responde, con la marca puesta.
	e.gw.nextErr["fetch_by_doc"] = &domain.AuthorityUnavailableError{Op: "fetch", Err: context.DeadlineExceeded}
	doc, err := e.mgr.Get(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.True(t, doc.ReconcileRequired)
}

func TestGenerate_DuplicateAdoptsExistingRegistration(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s, err := e.store.Sales().GetByID(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	e.gw.register(&einvoice.Document{Number: s.InvoiceNumber})

	doc, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusGenerated, doc.Status)
	assert.Equal(t, "irn-INV2510000001", doc.IRN)
}

func TestCancel(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	req := dto.CancelEInvoiceRequest{ReasonCode: "2", Remarks: "wrong quantity billed"}

	_, err := e.mgr.Cancel(ctx, merchantID, b2bSaleID, req)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)

	_, err = e.mgr.Cancel(ctx, merchantID, b2bSaleID, dto.CancelEInvoiceRequest{ReasonCode: "9", Remarks: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.mgr.Cancel(ctx, merchantID, b2bSaleID, dto.CancelEInvoiceRequest{ReasonCode: "2", Remarks: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	doc, err := e.mgr.Cancel(ctx, merchantID, b2bSaleID, req)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusCancelled, doc.Status)
	assert.Equal(t, "2", doc.CancelReasonCode)
	assert.Equal(t, "wrong quantity billed", doc.CancelRemarks)
	assert.NotEmpty(t, doc.CancelledAt)
	assert.Equal(t, entity.EInvoiceStatusCancelled, e.saleStatus(t, b2bSaleID))

	s, err := e.store.Sales().GetByID(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.True(t, s.Total.Equal(d("1180")), "cancellation never touches money")

	_, err = e.mgr.Cancel(ctx, merchantID, b2bSaleID, req)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Equal(t, 1, e.gw.calls["cancel"])
}

func TestCancel_OutsideWindow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)

	e.now = fixedNow.Add(25 * time.Hour)
	_, err = e.mgr.Cancel(ctx, merchantID, b2bSaleID, dto.CancelEInvoiceRequest{ReasonCode: "duplicate", Remarks: "entered twice"})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Zero(t, e.gw.calls["cancel"])
}

func TestCancel_AuthorityFailureKeepsGenerated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)

	e.gw.nextErr["cancel"] = &domain.AuthorityRejectedError{Code: "9999", Message: "IRN cannot be cancelled"}
	_, err = e.mgr.Cancel(ctx, merchantID, b2bSaleID, dto.CancelEInvoiceRequest{ReasonCode: "4", Remarks: "other"})
	require.ErrorIs(t, err, domain.ErrAuthorityRejected)

	doc, err := e.mgr.Get(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusGenerated, doc.Status)
	assert.Equal(t, domain.AuditRef(err), doc.LastAuditID)
}

func TestVerify_ReportsDiscrepancyWithoutChangingStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.mgr.Verify(ctx, merchantID, b2bSaleID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	gen, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)

	v, err := e.mgr.Verify(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.False(t, v.Discrepancy)
	assert.Equal(t, einvoice.RemoteActive, v.RemoteStatus)

	e.gw.byIRN[gen.IRN].Status = einvoice.RemoteCancelled
	v, err = e.mgr.Verify(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.True(t, v.Discrepancy)
	assert.Equal(t, entity.EInvoiceStatusGenerated, v.LocalStatus)

	doc, err := e.mgr.Get(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	assert.Equal(t, entity.EInvoiceStatusGenerated, doc.Status)
}

func TestListAudit_RecordsEveryExchange(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.gw.nextErr["generate"] = &domain.AuthorityRejectedError{Message: "bad payload"}
	_, _ = e.mgr.Generate(ctx, merchantID, b2bSaleID)
	_, err := e.mgr.Generate(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)

	entries, err := e.mgr.ListAudit(ctx, merchantID, b2bSaleID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.AuditOutcomeRejected, entries[0].Outcome)
	assert.Equal(t, entity.AuditOutcomeSuccess, entries[1].Outcome)
}

func TestProcessAsync(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.mgr.Schedule(context.Background(), merchantID, b2bSaleID))
	e.mgr.Wait()
	assert.Equal(t, entity.EInvoiceStatusGenerated, e.saleStatus(t, b2bSaleID))
}
