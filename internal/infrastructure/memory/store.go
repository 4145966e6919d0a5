// Package memory implementa en proceso todos los puertos de almacenamiento. Una
// transacción trabaja sobre una copia profunda del estado que reemplaza al estado vivo
// solo si el callback tiene éxito; un registro fallido no deja rastro.
// Las transacciones se serializan con un único mutex.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

// Operaciones que se pueden hacer fallar con FailOn.
const (
	OpSaleCreate     = "sale.create"
	OpBatchAdjust    = "batch.adjust"
	OpMovementCreate = "movement.create"
	OpEInvoiceUpdate = "einvoice.update"
)

type state struct {
	merchants map[string]*entity.Merchant
	customers map[string]*entity.Customer
	products  map[string]*entity.Product
	batches   map[string]*entity.Batch
	sales     map[string]*entity.Sale
	saleOrder []string
	movements []*entity.StockMovement
	einvoices map[string]*entity.EInvoice
	configs   map[string]*entity.EInvoiceConfig
	audit     []*entity.AuditEntry
}

func newState() *state {
	return &state{
		merchants: map[string]*entity.Merchant{},
		customers: map[string]*entity.Customer{},
		products:  map[string]*entity.Product{},
		batches:   map[string]*entity.Batch{},
		sales:     map[string]*entity.Sale{},
		einvoices: map[string]*entity.EInvoice{},
		configs:   map[string]*entity.EInvoiceConfig{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.merchants {
		m := *v
		c.merchants[k] = &m
	}
	for k, v := range s.customers {
		cu := *v
		c.customers[k] = &cu
	}
	for k, v := range s.products {
		p := *v
		c.products[k] = &p
	}
	for k, v := range s.batches {
		c.batches[k] = copyBatch(v)
	}
	for k, v := range s.sales {
		c.sales[k] = copySale(v)
	}
	c.saleOrder = append([]string(nil), s.saleOrder...)
	for _, m := range s.movements {
		mv := *m
		c.movements = append(c.movements, &mv)
	}
	for k, v := range s.einvoices {
		c.einvoices[k] = copyEInvoice(v)
	}
	for k, v := range s.configs {
		cfg := *v
		c.configs[k] = &cfg
	}
	c.audit = append([]*entity.AuditEntry(nil), s.audit...)
	return c
}

// Store guarda el estado vivo.
type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error

	seqMu sync.Mutex
	seqs  map[string]int64
	now   func() time.Time
}

// NewStore devuelve un store vacío.
func NewStore() *Store {
	return &Store{st: newState(), faults: map[string]error{}, seqs: map[string]int64{}, now: time.Now}
}

// SetClock reemplaza el reloj de números de factura y marcas de tiempo.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.now = now
}

// FailOn hace que la próxima llamada de op devuelva err. Sirve para ejercitar el rollback.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// fault se llama con s.mu tomado.
func (s *Store) fault(op string) error {
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return err
	}
	return nil
}

// view liga los repositorios al estado vivo (bloqueando por llamada) o a la
// copia de trabajo de una transacción (con el bloqueo ya tomado).
type view struct {
	s  *Store
	tx *state
}

func (v view) do(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.st)
}

func (s *Store) live() view { return view{s: s} }

// inTx ejecuta fn sobre una copia de trabajo y la instala si tiene éxito.
func (s *Store) inTx(ctx context.Context, fn func(v view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	work := s.st.clone()
	if err := fn(view{s: s, tx: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.st = work
	return nil
}

// RunSale implementa sales.TxRunner.
func (s *Store) RunSale(ctx context.Context, fn func(
	batchRepo repository.BatchRepository,
	saleRepo repository.SaleRepository,
	movRepo repository.StockMovementRepository,
) error) error {
	return s.inTx(ctx, func(v view) error {
		return fn(&BatchRepository{v}, &SaleRepository{v}, &StockMovementRepository{v})
	})
}

// Run implementa inventory.TxRunner.
func (s *Store) Run(ctx context.Context, fn func(
	batchRepo repository.BatchRepository,
	movRepo repository.StockMovementRepository,
) error) error {
	return s.inTx(ctx, func(v view) error {
		return fn(&BatchRepository{v}, &StockMovementRepository{v})
	})
}

// Next implementa repository.InvoiceNumberGenerator. Los números nunca se entregan
// dos veces, pase lo que pase con la transacción que los usa.
func (s *Store) Next(_ context.Context, merchantID, prefix string) (string, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	key := merchantID + "/" + prefix
	s.seqs[key]++
	return entity.FormatInvoiceNumber(prefix, s.now(), s.seqs[key]), nil
}

// Repositorios ligados al estado vivo.

func (s *Store) Merchants() *MerchantRepository             { return &MerchantRepository{s.live()} }
func (s *Store) Customers() *CustomerRepository             { return &CustomerRepository{s.live()} }
func (s *Store) Products() *ProductRepository               { return &ProductRepository{s.live()} }
func (s *Store) Batches() *BatchRepository                  { return &BatchRepository{s.live()} }
func (s *Store) Sales() *SaleRepository                     { return &SaleRepository{s.live()} }
func (s *Store) Movements() *StockMovementRepository        { return &StockMovementRepository{s.live()} }
func (s *Store) EInvoices() *EInvoiceRepository             { return &EInvoiceRepository{s.live()} }
func (s *Store) EInvoiceConfigs() *EInvoiceConfigRepository { return &EInvoiceConfigRepository{s.live()} }
func (s *Store) Audit() *AuditRepository                    { return &AuditRepository{s.live()} }

func copyBatch(b *entity.Batch) *entity.Batch {
	c := *b
	return &c
}

func copySale(s *entity.Sale) *entity.Sale {
	c := *s
	c.Items = make([]*entity.SaleItem, 0, len(s.Items))
	for _, it := range s.Items {
		ic := *it
		ic.Allocations = append([]entity.AllocationLine(nil), it.Allocations...)
		c.Items = append(c.Items, &ic)
	}
	return &c
}

func copyEInvoice(e *entity.EInvoice) *entity.EInvoice {
	c := *e
	c.Reasons = append([]string(nil), e.Reasons...)
	return &c
}
