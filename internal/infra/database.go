package infra

import (
	"fmt"

	"cajapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection backed by pgx and brings the schema up
// to date: AutoMigrate for tables and columns, then idempotent SQL patches
// for what GORM cannot express (sequences, partial unique indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every caja table. Also used by the
// integration tests against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.SesionCaja{},
		&model.MovimientoEfectivo{},
		&model.OrdenCompra{},
		&model.ItemOrden{},
		&model.Pago{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot handle.
// Each statement is safe to re-run on an already-patched DB.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// numero_orden is ORD-<nextval>; a sequence keeps it gap-tolerant and race-free.
		{"sequence ordenes_compra_numero_seq",
			`CREATE SEQUENCE IF NOT EXISTS ordenes_compra_numero_seq START 1`},
		// At most one open session per store.
		{"partial unique index uq_sesiones_caja_tienda_abierta", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uq_sesiones_caja_tienda_abierta') THEN
    CREATE UNIQUE INDEX uq_sesiones_caja_tienda_abierta
        ON sesiones_caja (tienda_id)
        WHERE estado = 'abierta';
  END IF;
END $$`},
		{"unique numero_sesion per store", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uq_sesiones_caja_tienda_numero') THEN
    CREATE UNIQUE INDEX uq_sesiones_caja_tienda_numero
        ON sesiones_caja (tienda_id, numero_sesion);
  END IF;
END $$`},
		// Partial index for the inventory reconciliation sweep.
		{"partial index idx_ordenes_inventario_pendiente", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_ordenes_inventario_pendiente') THEN
    CREATE INDEX idx_ordenes_inventario_pendiente
        ON ordenes_compra (fecha_pago)
        WHERE inventario_pendiente AND inventario_error IS NULL;
  END IF;
END $$`},
		{"check movimientos_efectivo monto > 0", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_movimientos_efectivo_monto') THEN
    ALTER TABLE movimientos_efectivo
      ADD CONSTRAINT chk_movimientos_efectivo_monto CHECK (monto > 0);
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
