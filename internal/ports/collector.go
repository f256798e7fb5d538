package ports

import "github.com/svjp05/IEMS-SERVR/internal/domain"

// Collector produces samples that did not arrive on a sensor connection, such
// as the simulated generator.
type Collector interface {
	Start(out chan<- *domain.Sample) error
	Stop() error
}
