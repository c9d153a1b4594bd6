// Package seed generates the deterministic synthetic supply-chain dataset
// used for demos and tests, and writes it as SQLite or parquet.
package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

type Cliente struct {
	CodiceCliente  string `parquet:"Codice Cliente"`
	RagioneSociale string `parquet:"Ragione Sociale"`
	Zona           string `parquet:"Zona"`
	Classe         string `parquet:"Classe"`
	Citta          string `parquet:"Citta"`
}

type Articolo struct {
	CodiceArticolo string  `parquet:"Codice Articolo"`
	Descrizione    string  `parquet:"Descrizione"`
	Categoria      string  `parquet:"Categoria"`
	Prezzo         float64 `parquet:"Prezzo"`
}

type Ordine struct {
	CodiceOrdine         string  `parquet:"Codice Ordine"`
	CodiceCliente        string  `parquet:"Codice Cliente"`
	CodiceArticolo       string  `parquet:"Codice Articolo"`
	Quantita             int64   `parquet:"Quantita"`
	Valore               float64 `parquet:"Valore"`
	DataRegistrazione    string  `parquet:"Data Registrazione"`
	DataConsegnaPrevista string  `parquet:"Data Consegna Prevista"`
}

type Spedizione struct {
	CodiceSpedizione     string  `parquet:"Codice Spedizione"`
	CodiceOrdine         string  `parquet:"Codice Ordine"`
	CodiceVettore        string  `parquet:"Codice Vettore"`
	DataSpedizione       string  `parquet:"Data Spedizione"`
	DataPrevistaConsegna string  `parquet:"Data Prevista Consegna"`
	DataConsegna         *string `parquet:"Data Consegna,optional"`
	FlagConsegnaVettore  int64   `parquet:"Flag Consegna Vettore"`
}

type Dataset struct {
	Clienti    []Cliente
	Articoli   []Articolo
	Ordini     []Ordine
	Spedizioni []Spedizione
}

// Sizes controls how many rows of each table are generated. Every order
// gets exactly one shipment.
type Sizes struct {
	Clients     int
	Articles    int
	Orders      int
	OnTimeRatio float64
	StartDate   time.Time
}

// OnTimeCount is the number of shipments delivered on time, with the
// carrier flag set, for the given sizes.
func (s Sizes) OnTimeCount() int {
	count := int(math.Round(s.OnTimeRatio * float64(s.Orders)))
	return max(0, min(count, s.Orders))
}

type Generator struct {
	rnd   *rand.Rand
	sizes Sizes
}

func NewGenerator(seed int64, sizes Sizes) *Generator {
	if sizes.StartDate.IsZero() {
		sizes.StartDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Generator{rnd: rand.New(rand.NewSource(seed)), sizes: sizes}
}

func (g *Generator) Generate() Dataset {
	dataset := Dataset{
		Clienti:    make([]Cliente, 0, g.sizes.Clients),
		Articoli:   make([]Articolo, 0, g.sizes.Articles),
		Ordini:     make([]Ordine, 0, g.sizes.Orders),
		Spedizioni: make([]Spedizione, 0, g.sizes.Orders),
	}

	for i := 1; i <= g.sizes.Clients; i++ {
		dataset.Clienti = append(dataset.Clienti, Cliente{
			CodiceCliente:  fmt.Sprintf("CLI%03d", i),
			RagioneSociale: fmt.Sprintf("%s %s", pickOne(g.rnd, companyNames), pickOne(g.rnd, companySuffixes)),
			Zona:           pickOne(g.rnd, zones),
			Classe:         pickOne(g.rnd, classes),
			Citta:          pickOne(g.rnd, cities),
		})
	}

	for i := 1; i <= g.sizes.Articles; i++ {
		category := pickOne(g.rnd, categories)
		dataset.Articoli = append(dataset.Articoli, Articolo{
			CodiceArticolo: fmt.Sprintf("ART%03d", i),
			Descrizione:    fmt.Sprintf("Articolo%d %s", i, category),
			Categoria:      category,
			Prezzo:         round2(5 + g.rnd.Float64()*495),
		})
	}

	onTime := make(map[int]bool, g.sizes.Orders)
	for _, index := range g.rnd.Perm(g.sizes.Orders)[:g.sizes.OnTimeCount()] {
		onTime[index] = true
	}

	for i := 0; i < g.sizes.Orders; i++ {
		order, shipment := g.nextOrder(i, dataset, onTime[i])
		dataset.Ordini = append(dataset.Ordini, order)
		dataset.Spedizioni = append(dataset.Spedizioni, shipment)
	}
	return dataset
}

func (g *Generator) nextOrder(index int, dataset Dataset, onTime bool) (Ordine, Spedizione) {
	registered := g.sizes.StartDate.AddDate(0, 0, g.rnd.Intn(365))
	planned := registered.AddDate(0, 0, 3+g.rnd.Intn(12))
	quantity := int64(1 + g.rnd.Intn(100))

	order := Ordine{
		CodiceOrdine:         fmt.Sprintf("ORD%05d", index+1),
		CodiceCliente:        pickClient(g.rnd, dataset.Clienti),
		Quantita:             quantity,
		DataRegistrazione:    registered.Format(time.DateOnly),
		DataConsegnaPrevista: planned.Format(time.DateOnly),
	}
	if len(dataset.Articoli) > 0 {
		article := dataset.Articoli[g.rnd.Intn(len(dataset.Articoli))]
		order.CodiceArticolo = article.CodiceArticolo
		order.Valore = round2(article.Prezzo * float64(quantity))
	}

	shipped := registered.AddDate(0, 0, 1+g.rnd.Intn(2))
	var delivered time.Time
	flag := int64(1)
	if onTime {
		delivered = planned.AddDate(0, 0, -g.rnd.Intn(2))
	} else {
		delivered = planned.AddDate(0, 0, 1+g.rnd.Intn(10))
		flag = int64(g.rnd.Intn(2))
	}
	deliveredText := delivered.Format(time.DateOnly)

	shipment := Spedizione{
		CodiceSpedizione:     fmt.Sprintf("SPE%05d", index+1),
		CodiceOrdine:         order.CodiceOrdine,
		CodiceVettore:        fmt.Sprintf("VET%02d", 1+g.rnd.Intn(len(carriers))),
		DataSpedizione:       shipped.Format(time.DateOnly),
		DataPrevistaConsegna: planned.Format(time.DateOnly),
		DataConsegna:         &deliveredText,
		FlagConsegnaVettore:  flag,
	}
	return order, shipment
}

var (
	companyNames    = []string{"Rossi", "Bianchi", "Ferrari", "Esposito", "Romano", "Colombo", "Ricci", "Marino"}
	companySuffixes = []string{"S.p.A.", "S.r.l.", "& Figli", "Logistica", "Industrie"}
	zones           = []string{"Italia", "UE", "ExtraUE"}
	classes         = []string{"A", "B", "C"}
	cities          = []string{"Milano", "Torino", "Bologna", "Verona", "Monaco", "Lione", "Madrid", "New York"}
	categories      = []string{"Meccanica", "Elettronica", "Imballaggi", "Ricambi", "Utensili"}
	carriers        = []string{"VET01", "VET02", "VET03", "VET04", "VET05"}
)

func pickClient(r *rand.Rand, clients []Cliente) string {
	if len(clients) == 0 {
		return ""
	}
	return clients[r.Intn(len(clients))].CodiceCliente
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
