package compliance

import (
	"context"
)

// ProcessAsync ejecuta Generate en su propia goroutine con un contexto nuevo y el
// timeout configurado, desligado de la petición que lo disparó. Los fallos se
// registran en el log y quedan en el documento para que un operador reintente.
func (m *Manager) ProcessAsync(merchantID, saleID string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.AsyncTimeout)
		defer cancel()
		if _, err := m.Generate(ctx, merchantID, saleID); err != nil {
			m.log.Warn().Str("merchant_id", merchantID).Str("sale_id", saleID).Str("op", "generate_async").
				Err(err).Msg("background e-invoice generation failed")
		}
	}()
}

// Schedule implementa sales.DocumentScheduler para despliegues sin cola.
func (m *Manager) Schedule(_ context.Context, merchantID, saleID string) error {
	m.ProcessAsync(merchantID, saleID)
	return nil
}

// Wait bloquea hasta que terminen las generaciones en segundo plano. Se llama al apagar.
func (m *Manager) Wait() {
	m.wg.Wait()
}
