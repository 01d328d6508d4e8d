package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria de los puertos de persistencia.
//
// Reproducen la semántica de las sentencias condicionales del adaptador
// PostgreSQL: cada mutación verifica su predicado y aplica el cambio bajo el
// mismo lock, igual que un UPDATE condicional afecta cero filas cuando el
// predicado no se cumple. El fakeTxRunner toma un snapshot y lo restaura si el
// callback falla, igual que un Rollback.
// ──────────────────────────────────────────────────────────────────────────────

type fakeStore struct {
	mu     sync.Mutex
	levels map[string]*entity.StockLevel
	moves  []*entity.StockMove
}

func newFakeStore() *fakeStore {
	return &fakeStore{levels: make(map[string]*entity.StockLevel)}
}

func levelKey(productID, warehouseID string) string {
	return productID + "|" + warehouseID
}

func copyLevel(l *entity.StockLevel) *entity.StockLevel {
	c := *l
	return &c
}

type fakeLevelRepo struct {
	store *fakeStore
}

var _ repository.StockLevelRepository = (*fakeLevelRepo)(nil)

func (f *fakeLevelRepo) Get(_ context.Context, productID, warehouseID string) (*entity.StockLevel, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if l, ok := f.store.levels[levelKey(productID, warehouseID)]; ok {
		return copyLevel(l), nil
	}
	return nil, nil
}

func (f *fakeLevelRepo) GetForUpdate(_ context.Context, productID, warehouseID string) (*entity.StockLevel, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if l, ok := f.store.levels[levelKey(productID, warehouseID)]; ok {
		return copyLevel(l), nil
	}
	return &entity.StockLevel{
		ProductID:        productID,
		WarehouseID:      warehouseID,
		Quantity:         decimal.Zero,
		ReservedQuantity: decimal.Zero,
	}, nil
}

func (f *fakeLevelRepo) ApplyDelta(_ context.Context, productID, warehouseID string, delta decimal.Decimal) (*entity.StockLevel, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	key := levelKey(productID, warehouseID)
	l, ok := f.store.levels[key]
	if !ok {
		if delta.IsNegative() {
			return nil, domain.ErrInsufficientStock
		}
		l = &entity.StockLevel{
			ProductID:        productID,
			WarehouseID:      warehouseID,
			Quantity:         delta,
			ReservedQuantity: decimal.Zero,
			UpdatedAt:        time.Now(),
		}
		f.store.levels[key] = l
		return copyLevel(l), nil
	}
	next := l.Quantity.Add(delta)
	if next.LessThan(l.ReservedQuantity) {
		return nil, domain.ErrInsufficientStock
	}
	l.Quantity = next
	l.UpdatedAt = time.Now()
	return copyLevel(l), nil
}

func (f *fakeLevelRepo) Reserve(_ context.Context, productID, warehouseID string, quantity decimal.Decimal) (*entity.StockLevel, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	l, ok := f.store.levels[levelKey(productID, warehouseID)]
	if !ok {
		return nil, domain.ErrInsufficientStock
	}
	next := l.ReservedQuantity.Add(quantity)
	if next.GreaterThan(l.Quantity) {
		return nil, domain.ErrInsufficientStock
	}
	l.ReservedQuantity = next
	l.UpdatedAt = time.Now()
	return copyLevel(l), nil
}

func (f *fakeLevelRepo) ReleaseReservation(_ context.Context, productID, warehouseID string, quantity decimal.Decimal) (*entity.StockLevel, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	l, ok := f.store.levels[levelKey(productID, warehouseID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := l.ReservedQuantity.Sub(quantity)
	if next.IsNegative() {
		next = decimal.Zero
	}
	l.ReservedQuantity = next
	l.UpdatedAt = time.Now()
	return copyLevel(l), nil
}

func (f *fakeLevelRepo) ListByWarehouse(_ context.Context, warehouseID string, _, _ int) ([]*entity.StockLevel, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var list []*entity.StockLevel
	for _, l := range f.store.levels {
		if l.WarehouseID == warehouseID {
			list = append(list, copyLevel(l))
		}
	}
	return list, nil
}

func (f *fakeLevelRepo) ListByProduct(_ context.Context, productID string) ([]*entity.StockLevel, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var list []*entity.StockLevel
	for _, l := range f.store.levels {
		if l.ProductID == productID {
			list = append(list, copyLevel(l))
		}
	}
	return list, nil
}

type fakeMoveRepo struct {
	store *fakeStore

	// failOnCreate hace fallar el N-ésimo Create (1-based) para simular un
	// error de storage a mitad de transacción. 0 = nunca falla.
	failOnCreate int
	createCalls  int
}

var _ repository.StockMoveRepository = (*fakeMoveRepo)(nil)

func (f *fakeMoveRepo) Create(_ context.Context, move *entity.StockMove) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.createCalls++
	if f.failOnCreate > 0 && f.createCalls == f.failOnCreate {
		return assert.AnError
	}
	if move.ID == "" {
		move.ID = uuid.New().String()
	}
	c := *move
	f.store.moves = append(f.store.moves, &c)
	return nil
}

func (f *fakeMoveRepo) GetByID(_ context.Context, id string) (*entity.StockMove, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, m := range f.store.moves {
		if m.ID == id {
			c := *m
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeMoveRepo) ListByWarehouse(_ context.Context, warehouseID string, _, _ *time.Time, _, _ int) ([]*entity.StockMove, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var list []*entity.StockMove
	for _, m := range f.store.moves {
		if m.SourceWarehouseID == warehouseID || m.TargetWarehouseID == warehouseID {
			c := *m
			list = append(list, &c)
		}
	}
	return list, nil
}

func (f *fakeMoveRepo) ListByProduct(_ context.Context, productID string, _, _ *time.Time, _, _ int) ([]*entity.StockMove, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var list []*entity.StockMove
	for _, m := range f.store.moves {
		if m.ProductID == productID {
			c := *m
			list = append(list, &c)
		}
	}
	return list, nil
}

// fakeTxRunner serializa transacciones (txMu) y restaura un snapshot del store
// si el callback falla: el equivalente en memoria de Begin/Commit/Rollback.
type fakeTxRunner struct {
	store *fakeStore
	moves *fakeMoveRepo
	txMu  sync.Mutex
}

var _ inventory.TxRunner = (*fakeTxRunner)(nil)

func (r *fakeTxRunner) Run(_ context.Context, fn func(repository.StockLevelRepository, repository.StockMoveRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.store.mu.Lock()
	levelsSnap := make(map[string]*entity.StockLevel, len(r.store.levels))
	for k, v := range r.store.levels {
		levelsSnap[k] = copyLevel(v)
	}
	movesSnap := make([]*entity.StockMove, len(r.store.moves))
	copy(movesSnap, r.store.moves)
	r.store.mu.Unlock()

	if err := fn(&fakeLevelRepo{store: r.store}, r.moves); err != nil {
		r.store.mu.Lock()
		r.store.levels = levelsSnap
		r.store.moves = movesSnap
		r.store.mu.Unlock()
		return err
	}
	return nil
}

type testEnv struct {
	engine *inventory.Engine
	store  *fakeStore
	moves  *fakeMoveRepo
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	moves := &fakeMoveRepo{store: store}
	engine := inventory.NewEngine(
		&fakeLevelRepo{store: store},
		moves,
		&fakeTxRunner{store: store, moves: moves},
		logger.Nop(),
	)
	return &testEnv{engine: engine, store: store, moves: moves}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func (e *testEnv) level(t *testing.T, productID, warehouseID string) *entity.StockLevel {
	t.Helper()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	l, ok := e.store.levels[levelKey(productID, warehouseID)]
	if !ok {
		return nil
	}
	return copyLevel(l)
}

// assertLedgerConsistente verifica el invariante del libro: para cada par
// (producto, bodega) el saldo es la suma de los deltas donde la bodega es
// destino más los deltas (ya negativos) donde es origen.
func (e *testEnv) assertLedgerConsistente(t *testing.T) {
	t.Helper()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()

	sums := make(map[string]decimal.Decimal)
	for _, m := range e.store.moves {
		if m.TargetWarehouseID != "" {
			k := levelKey(m.ProductID, m.TargetWarehouseID)
			sums[k] = sums[k].Add(m.QuantityDelta)
		}
		if m.SourceWarehouseID != "" {
			k := levelKey(m.ProductID, m.SourceWarehouseID)
			sums[k] = sums[k].Add(m.QuantityDelta)
		}
	}
	for k, l := range e.store.levels {
		assert.True(t, l.Quantity.Equal(sums[k]),
			"saldo %s=%s difiere de la suma del libro %s", k, l.Quantity, sums[k])
	}
	for k, sum := range sums {
		l, ok := e.store.levels[k]
		require.True(t, ok, "hay movimientos de %s pero no saldo", k)
		assert.True(t, sum.Equal(l.Quantity))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenario completo: el recorrido bodega W1/W2, producto P.
// ──────────────────────────────────────────────────────────────────────────────

func TestEngine_EscenarioCompleto(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// 1. Entrada de 100 por compra.
	move, err := env.engine.ReceiveStock(ctx, inventory.ReceiveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(100),
		Source: entity.SourcePurchase, Reference: "PO-001", UserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "W1", move.TargetWarehouseID)
	assert.Empty(t, move.SourceWarehouseID)
	assert.True(t, move.QuantityDelta.Equal(dec(100)))
	assert.Equal(t, "INBOUND_PURCHASE", move.MoveType.String())

	l := env.level(t, "P", "W1")
	require.NotNil(t, l)
	assert.True(t, l.Quantity.Equal(dec(100)))
	assert.True(t, l.ReservedQuantity.IsZero())

	// 2. Reserva de 30.
	level, err := env.engine.ReserveStock(ctx, inventory.ReserveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(30),
		DocumentType: "SO-B2B", DocumentID: "SO-001",
	})
	require.NoError(t, err)
	assert.True(t, level.ReservedQuantity.Equal(dec(30)))

	ok, err := env.engine.CheckAvailability(ctx, "P", "W1", dec(71))
	require.NoError(t, err)
	assert.False(t, ok, "disponible es 70, 71 no cabe")
	ok, err = env.engine.CheckAvailability(ctx, "P", "W1", dec(70))
	require.NoError(t, err)
	assert.True(t, ok)

	// 3. Salida de 20 liberando reserva.
	move, err = env.engine.IssueStock(ctx, inventory.IssueInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(20),
		Source: entity.SourceSalesB2C, ReleaseReservation: true, UserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "W1", move.SourceWarehouseID)
	assert.True(t, move.QuantityDelta.Equal(dec(-20)))

	l = env.level(t, "P", "W1")
	assert.True(t, l.Quantity.Equal(dec(80)))
	assert.True(t, l.ReservedQuantity.Equal(dec(10)))

	// 4. Traslado de 50 a W2: dos movimientos, un solo commit.
	result, err := env.engine.TransferStock(ctx, inventory.TransferInput{
		ProductID: "P", SourceWarehouseID: "W1", TargetWarehouseID: "W2",
		Quantity: dec(50), UserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "OUTBOUND_TRANSFER", result.SourceMove.MoveType.String())
	assert.Equal(t, "INBOUND_TRANSFER", result.TargetMove.MoveType.String())
	assert.Equal(t, "W1", result.SourceMove.SourceWarehouseID)
	assert.Equal(t, "W2", result.TargetMove.TargetWarehouseID)

	l = env.level(t, "P", "W1")
	assert.True(t, l.Quantity.Equal(dec(30)))
	assert.True(t, l.ReservedQuantity.Equal(dec(10)))
	l2 := env.level(t, "P", "W2")
	require.NotNil(t, l2)
	assert.True(t, l2.Quantity.Equal(dec(50)))
	assert.True(t, l2.ReservedQuantity.IsZero())

	// 5. Ajuste -40 con saldo 30: rechazado sin escribir nada.
	_, err = env.engine.AdjustStock(ctx, inventory.AdjustInput{
		ProductID: "P", WarehouseID: "W1", QuantityDelta: dec(-40), Reason: "conteo físico",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	l = env.level(t, "P", "W1")
	assert.True(t, l.Quantity.Equal(dec(30)), "el ajuste rechazado no muta el saldo")

	// 6. Ajuste -15: 15 en mano, 10 reservado, disponible 5 >= 0.
	move, err = env.engine.AdjustStock(ctx, inventory.AdjustInput{
		ProductID: "P", WarehouseID: "W1", QuantityDelta: dec(-15), Reason: "conteo físico",
	})
	require.NoError(t, err)
	assert.Equal(t, "OUTBOUND_ADJUSTMENT", move.MoveType.String())
	l = env.level(t, "P", "W1")
	assert.True(t, l.Quantity.Equal(dec(15)))
	assert.True(t, l.ReservedQuantity.Equal(dec(10)))

	env.assertLedgerConsistente(t)
}

// ──────────────────────────────────────────────────────────────────────────────
// Validaciones: entradas cero/negativas se rechazan sin mutar estado.
// ──────────────────────────────────────────────────────────────────────────────

func TestEngine_RechazaCantidadesInvalidas(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	seed(t, env, "P", "W1", 50)

	_, err := env.engine.ReceiveStock(ctx, inventory.ReceiveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(0), Source: entity.SourcePurchase,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.engine.ReceiveStock(ctx, inventory.ReceiveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(-5), Source: entity.SourcePurchase,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.engine.IssueStock(ctx, inventory.IssueInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(0), Source: entity.SourceRetail,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.engine.ReserveStock(ctx, inventory.ReserveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(-1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.engine.ReleaseReservation(ctx, "P", "W1", dec(0))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Ajuste con delta cero: rechazado, no es un no-op silencioso.
	_, err = env.engine.AdjustStock(ctx, inventory.AdjustInput{
		ProductID: "P", WarehouseID: "W1", QuantityDelta: dec(0),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	l := env.level(t, "P", "W1")
	assert.True(t, l.Quantity.Equal(dec(50)), "ninguna validación fallida muta estado")
	assert.Len(t, env.store.moves, 1, "solo el movimiento de seed")
}

func TestEngine_RechazaOrigenDesconocido(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.engine.ReceiveStock(ctx, inventory.ReceiveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(10),
		Source: entity.SourceSalesB2C, // venta no es un origen de entrada
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.engine.IssueStock(ctx, inventory.IssueInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(10),
		Source: entity.SourcePurchase, // compra no es un origen de salida
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTransfer_MismaBodegaRechazada(t *testing.T) {
	env := newTestEnv()
	seed(t, env, "P", "W1", 100)

	_, err := env.engine.TransferStock(context.Background(), inventory.TransferInput{
		ProductID: "P", SourceWarehouseID: "W1", TargetWarehouseID: "W1", Quantity: dec(10),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Lecturas.
// ──────────────────────────────────────────────────────────────────────────────

func TestGetStockLevel_NoExiste(t *testing.T) {
	env := newTestEnv()
	_, err := env.engine.GetStockLevel(context.Background(), "P", "W1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetAvailableStock_SinNivelEsCero(t *testing.T) {
	env := newTestEnv()
	available, err := env.engine.GetAvailableStock(context.Background(), "P", "W1")
	require.NoError(t, err)
	assert.True(t, available.IsZero())
}

func TestCheckAvailability_CantidadNoPositiva(t *testing.T) {
	env := newTestEnv()
	seed(t, env, "P", "W1", 100)

	ok, err := env.engine.CheckAvailability(context.Background(), "P", "W1", dec(0))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.engine.CheckAvailability(context.Background(), "P", "W1", dec(-3))
	require.NoError(t, err)
	assert.False(t, ok)
}

// ──────────────────────────────────────────────────────────────────────────────
// Reservas.
// ──────────────────────────────────────────────────────────────────────────────

func TestReserve_SinDisponibilidad(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seed(t, env, "P", "W1", 10)

	_, err := env.engine.ReserveStock(ctx, inventory.ReserveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(11),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// Par inexistente también es stock insuficiente para reservar.
	_, err = env.engine.ReserveStock(ctx, inventory.ReserveInput{
		ProductID: "OTRO", WarehouseID: "W1", Quantity: dec(1),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestRelease_PisoEnCero(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seed(t, env, "P", "W1", 100)

	_, err := env.engine.ReserveStock(ctx, inventory.ReserveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(30),
	})
	require.NoError(t, err)

	// Liberar más de lo reservado no es error: la reserva queda en 0.
	level, err := env.engine.ReleaseReservation(ctx, "P", "W1", dec(80))
	require.NoError(t, err)
	assert.True(t, level.ReservedQuantity.IsZero())
	assert.True(t, level.Quantity.Equal(dec(100)), "liberar no toca la cantidad en mano")
}

func TestRelease_NivelInexistente(t *testing.T) {
	env := newTestEnv()
	_, err := env.engine.ReleaseReservation(context.Background(), "P", "W1", dec(5))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReserve_NoEscribeMovimiento(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seed(t, env, "P", "W1", 100)

	_, err := env.engine.ReserveStock(ctx, inventory.ReserveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(40),
	})
	require.NoError(t, err)
	_, err = env.engine.ReleaseReservation(ctx, "P", "W1", dec(40))
	require.NoError(t, err)

	assert.Len(t, env.store.moves, 1, "reservar/liberar no mueve stock físico: solo el seed")
}

// ──────────────────────────────────────────────────────────────────────────────
// Salidas y ajustes.
// ──────────────────────────────────────────────────────────────────────────────

func TestIssue_RespetaReserva(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seed(t, env, "P", "W1", 100)

	_, err := env.engine.ReserveStock(ctx, inventory.ReserveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(60),
	})
	require.NoError(t, err)

	// Disponible 40: emitir 50 sin liberar reserva debe fallar.
	_, err = env.engine.IssueStock(ctx, inventory.IssueInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(50), Source: entity.SourceRetail,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// Emitir 50 liberando su reserva sí cabe.
	_, err = env.engine.IssueStock(ctx, inventory.IssueInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(50),
		Source: entity.SourceRetail, ReleaseReservation: true,
	})
	require.NoError(t, err)

	l := env.level(t, "P", "W1")
	assert.True(t, l.Quantity.Equal(dec(50)))
	assert.True(t, l.ReservedQuantity.Equal(dec(10)))
	env.assertLedgerConsistente(t)
}

func TestIssue_SinNivel(t *testing.T) {
	env := newTestEnv()
	_, err := env.engine.IssueStock(context.Background(), inventory.IssueInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(1), Source: entity.SourceLoss,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Empty(t, env.store.moves)
}

func TestAdjust_PositivoYNegativo(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seed(t, env, "P", "W1", 20)

	move, err := env.engine.AdjustStock(ctx, inventory.AdjustInput{
		ProductID: "P", WarehouseID: "W1", QuantityDelta: dec(5), Reason: "sobrante de conteo",
	})
	require.NoError(t, err)
	assert.Equal(t, "INBOUND_ADJUSTMENT", move.MoveType.String())
	assert.Equal(t, "W1", move.TargetWarehouseID)
	assert.Equal(t, "sobrante de conteo", move.Note)

	move, err = env.engine.AdjustStock(ctx, inventory.AdjustInput{
		ProductID: "P", WarehouseID: "W1", QuantityDelta: dec(-25),
	})
	require.NoError(t, err)
	assert.Equal(t, "OUTBOUND_ADJUSTMENT", move.MoveType.String())
	assert.Equal(t, "W1", move.SourceWarehouseID)

	l := env.level(t, "P", "W1")
	assert.True(t, l.Quantity.IsZero())
	env.assertLedgerConsistente(t)
}

func TestAdjust_NoBajaDeLaReserva(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seed(t, env, "P", "W1", 50)

	_, err := env.engine.ReserveStock(ctx, inventory.ReserveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(30),
	})
	require.NoError(t, err)

	// 50 - 25 = 25 < 30 reservado: dejaría disponible negativo.
	_, err = env.engine.AdjustStock(ctx, inventory.AdjustInput{
		ProductID: "P", WarehouseID: "W1", QuantityDelta: dec(-25),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// 50 - 20 = 30 = reservado: disponible 0, justo en el borde.
	_, err = env.engine.AdjustStock(ctx, inventory.AdjustInput{
		ProductID: "P", WarehouseID: "W1", QuantityDelta: dec(-20),
	})
	require.NoError(t, err)

	l := env.level(t, "P", "W1")
	assert.True(t, l.Quantity.Equal(dec(30)))
	assert.True(t, l.ReservedQuantity.Equal(dec(30)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Atomicidad del traslado.
// ──────────────────────────────────────────────────────────────────────────────

func TestTransfer_RollbackSiFallaLaSegundaPierna(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seed(t, env, "P", "W1", 100)

	// El seed consumió el primer Create; la pierna destino es el tercero.
	env.moves.failOnCreate = 3

	_, err := env.engine.TransferStock(ctx, inventory.TransferInput{
		ProductID: "P", SourceWarehouseID: "W1", TargetWarehouseID: "W2", Quantity: dec(40),
	})
	require.Error(t, err)

	// Nada de la pierna origen quedó visible.
	l := env.level(t, "P", "W1")
	assert.True(t, l.Quantity.Equal(dec(100)), "el débito en origen se revirtió")
	assert.Nil(t, env.level(t, "P", "W2"), "el crédito en destino nunca se materializó")
	assert.Len(t, env.store.moves, 1, "solo el movimiento de seed sobrevive")
	env.assertLedgerConsistente(t)
}

func TestTransfer_SinDisponibilidadEnOrigen(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seed(t, env, "P", "W1", 30)

	_, err := env.engine.ReserveStock(ctx, inventory.ReserveInput{
		ProductID: "P", WarehouseID: "W1", Quantity: dec(20),
	})
	require.NoError(t, err)

	// Disponible 10 < 15.
	_, err = env.engine.TransferStock(ctx, inventory.TransferInput{
		ProductID: "P", SourceWarehouseID: "W1", TargetWarehouseID: "W2", Quantity: dec(15),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Nil(t, env.level(t, "P", "W2"))
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia: N llamadas cuya suma excede lo disponible producen exactamente
// las que caben; el saldo nunca queda negativo.
// ──────────────────────────────────────────────────────────────────────────────

func TestReserve_ConcurrenciaNoSobreReserva(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seed(t, env, "P", "W1", 100)

	const workers = 25 // 25 × 10 = 250 pedidos sobre 100 disponibles
	var wg sync.WaitGroup
	var successes int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.ReserveStock(ctx, inventory.ReserveInput{
				ProductID: "P", WarehouseID: "W1", Quantity: dec(10),
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, successes, "caben exactamente 10 reservas de 10 sobre 100")
	l := env.level(t, "P", "W1")
	assert.True(t, l.ReservedQuantity.Equal(dec(100)))
	assert.True(t, l.ReservedQuantity.LessThanOrEqual(l.Quantity))
}

func TestIssue_ConcurrenciaNoDejaSaldoNegativo(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seed(t, env, "P", "W1", 70)

	const workers = 20 // 20 × 10 = 200 pedidos sobre 70 en mano
	var wg sync.WaitGroup
	var successes int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.IssueStock(ctx, inventory.IssueInput{
				ProductID: "P", WarehouseID: "W1", Quantity: dec(10), Source: entity.SourceRetail,
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 7, successes, "caben exactamente 7 salidas de 10 sobre 70")
	l := env.level(t, "P", "W1")
	assert.True(t, l.Quantity.IsZero())
	assert.False(t, l.Quantity.IsNegative())
	env.assertLedgerConsistente(t)
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas del libro.
// ──────────────────────────────────────────────────────────────────────────────

func TestListMovements(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seed(t, env, "P", "W1", 100)

	_, err := env.engine.TransferStock(ctx, inventory.TransferInput{
		ProductID: "P", SourceWarehouseID: "W1", TargetWarehouseID: "W2", Quantity: dec(40),
	})
	require.NoError(t, err)

	byProduct, err := env.engine.ListMovementsByProduct(ctx, "P", nil, nil, 50, 0)
	require.NoError(t, err)
	assert.Len(t, byProduct, 3, "seed + dos piernas del traslado")

	byW2, err := env.engine.ListMovementsByWarehouse(ctx, "W2", nil, nil, 50, 0)
	require.NoError(t, err)
	assert.Len(t, byW2, 1, "W2 solo participa en la pierna de entrada")

	_, err = env.engine.ListMovementsByProduct(ctx, "", nil, nil, 50, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ── helper ────────────────────────────────────────────────────────────────────

// seed recibe quantity unidades por compra para inicializar el par.
func seed(t *testing.T, env *testEnv, productID, warehouseID string, quantity int64) {
	t.Helper()
	_, err := env.engine.ReceiveStock(context.Background(), inventory.ReceiveInput{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    dec(quantity),
		Source:      entity.SourcePurchase,
		Reference:   "SEED",
	})
	require.NoError(t, err)
}
