package mockapi

import (
	"time"

	"github.com/arthaus/storefront/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func fixtureProducts() []domain.Product {
	created := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	return []domain.Product{
		{
			ID: 1, Slug: "reflets-sur-la-seine", Title: "Reflets sur la Seine",
			Artist: "Élodie Charpentier", Category: "peinture",
			Description: "Huile sur toile, lumière d'automne sur le fleuve.",
			Price:       1250, Image: "/images/reflets-sur-la-seine.jpg",
			InStock: true, Featured: true, Bestseller: true,
			Rating: 4.8, ReviewCount: 12, CreatedAt: created,
		},
		{
			ID: 2, Slug: "nu-bleu-assis", Title: "Nu bleu assis",
			Artist: "Marc Aurel", Category: "dessin",
			Description: "Fusain et pastel bleu sur papier vergé.",
			Price:       480, Image: "/images/nu-bleu-assis.jpg",
			InStock: true, NewArrival: true,
			Rating: 4.5, ReviewCount: 4, CreatedAt: created.AddDate(0, 1, 2),
		},
		{
			ID: 3, Slug: "verger-en-fevrier", Title: "Verger en février",
			Artist: "Élodie Charpentier", Category: "peinture",
			Description: "Acrylique, branches nues sous un ciel laiteux.",
			Price:       980, OriginalPrice: floatPtr(1300), Image: "/images/verger-en-fevrier.jpg",
			InStock: true, FlashSale: true,
			Rating: 4.2, ReviewCount: 7, CreatedAt: created.AddDate(0, 0, 12),
		},
		{
			ID: 4, Slug: "composition-19", Title: "Composition 19",
			Artist: "Ibrahim Diallo", Category: "estampe",
			Description: "Sérigraphie en sept couleurs, édition de 40.",
			Price:       320, Image: "/images/composition-19.jpg",
			InStock: true, Bestseller: true,
			Rating: 4.9, ReviewCount: 21, CreatedAt: created.AddDate(0, -2, 0),
		},
		{
			ID: 5, Slug: "portrait-de-lea", Title: "Portrait de Léa",
			Artist: "Sofia Ricci", Category: "peinture",
			Description: "Huile sur lin, regard de trois quarts.",
			Price:       2100, Image: "/images/portrait-de-lea.jpg",
			InStock: false, Featured: true,
			Rating: 5, ReviewCount: 3, CreatedAt: created.AddDate(0, -1, 5),
		},
		{
			ID: 6, Slug: "maree-basse-a-cancale", Title: "Marée basse à Cancale",
			Artist: "Marc Aurel", Category: "photographie",
			Description: "Tirage argentique contrecollé sur aluminium.",
			Price:       640, Image: "/images/maree-basse-a-cancale.jpg",
			InStock: true, NewArrival: true,
			Rating: 4.1, ReviewCount: 5, CreatedAt: created.AddDate(0, 1, 20),
		},
		{
			ID: 7, Slug: "jardin-de-nuit", Title: "Jardin de nuit",
			Artist: "Ibrahim Diallo", Category: "estampe",
			Description: "Linogravure rehaussée à la gouache.",
			Price:       275, OriginalPrice: floatPtr(350), Image: "/images/jardin-de-nuit.jpg",
			InStock: true, FlashSale: true,
			Rating: 4.4, ReviewCount: 9, CreatedAt: created.AddDate(0, 0, 25),
		},
		{
			ID: 8, Slug: "etude-de-mains", Title: "Étude de mains",
			Artist: "Sofia Ricci", Category: "dessin",
			Description: "Sanguine sur papier teinté.",
			Price:       390, Image: "/images/etude-de-mains.jpg",
			InStock: true,
			Rating: 4.6, ReviewCount: 6, CreatedAt: created.AddDate(0, -3, 10),
		},
	}
}
