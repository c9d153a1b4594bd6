package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

var schemaStatements = []string{
	`CREATE TABLE Clienti (
	"Codice Cliente" TEXT NOT NULL PRIMARY KEY,
	"Ragione Sociale" TEXT NOT NULL,
	Zona TEXT NOT NULL,
	Classe TEXT NOT NULL,
	Citta TEXT NOT NULL
)`,
	`CREATE TABLE Articoli (
	"Codice Articolo" TEXT NOT NULL PRIMARY KEY,
	Descrizione TEXT NOT NULL,
	Categoria TEXT NOT NULL,
	Prezzo REAL NOT NULL
)`,
	`CREATE TABLE Ordini (
	"Codice Ordine" TEXT NOT NULL PRIMARY KEY,
	"Codice Cliente" TEXT NOT NULL REFERENCES Clienti("Codice Cliente"),
	"Codice Articolo" TEXT NOT NULL REFERENCES Articoli("Codice Articolo"),
	Quantita INTEGER NOT NULL,
	Valore REAL NOT NULL,
	"Data Registrazione" TEXT NOT NULL,
	"Data Consegna Prevista" TEXT NOT NULL
)`,
	`CREATE TABLE Spedizioni (
	"Codice Spedizione" TEXT NOT NULL PRIMARY KEY,
	"Codice Ordine" TEXT NOT NULL REFERENCES Ordini("Codice Ordine"),
	"Codice Vettore" TEXT NOT NULL,
	"Data Spedizione" TEXT NOT NULL,
	"Data Prevista Consegna" TEXT NOT NULL,
	"Data Consegna" TEXT,
	"Flag Consegna Vettore" INTEGER NOT NULL
)`,
}

// WriteSQLite creates a fresh SQLite database at path holding dataset. An
// existing file at path is replaced.
func WriteSQLite(ctx context.Context, path string, dataset Dataset) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove existing database: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	defer func() { _ = db.Close() }()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, statement := range schemaStatements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if err := insertDataset(ctx, tx, dataset); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}
	return nil
}

func insertDataset(ctx context.Context, tx *sql.Tx, dataset Dataset) error {
	for _, row := range dataset.Clienti {
		if _, err := tx.ExecContext(ctx, `INSERT INTO Clienti VALUES (?, ?, ?, ?, ?)`,
			row.CodiceCliente, row.RagioneSociale, row.Zona, row.Classe, row.Citta); err != nil {
			return fmt.Errorf("insert cliente %s: %w", row.CodiceCliente, err)
		}
	}
	for _, row := range dataset.Articoli {
		if _, err := tx.ExecContext(ctx, `INSERT INTO Articoli VALUES (?, ?, ?, ?)`,
			row.CodiceArticolo, row.Descrizione, row.Categoria, row.Prezzo); err != nil {
			return fmt.Errorf("insert articolo %s: %w", row.CodiceArticolo, err)
		}
	}
	for _, row := range dataset.Ordini {
		if _, err := tx.ExecContext(ctx, `INSERT INTO Ordini VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.CodiceOrdine, row.CodiceCliente, row.CodiceArticolo, row.Quantita, row.Valore,
			row.DataRegistrazione, row.DataConsegnaPrevista); err != nil {
			return fmt.Errorf("insert ordine %s: %w", row.CodiceOrdine, err)
		}
	}
	for _, row := range dataset.Spedizioni {
		if _, err := tx.ExecContext(ctx, `INSERT INTO Spedizioni VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.CodiceSpedizione, row.CodiceOrdine, row.CodiceVettore, row.DataSpedizione,
			row.DataPrevistaConsegna, row.DataConsegna, row.FlagConsegnaVettore); err != nil {
			return fmt.Errorf("insert spedizione %s: %w", row.CodiceSpedizione, err)
		}
	}
	return nil
}
