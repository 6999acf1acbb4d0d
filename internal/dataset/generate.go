package dataset

import (
	"math"
	"math/rand"

	"shelflife/internal/models"
	"shelflife/internal/rules"
)

// baseShelfLife is the refrigerated shelf life in days of a fresh item.
var baseShelfLife = map[models.FoodType]float64{
	models.Dairy:      14,
	models.Meat:       5,
	models.Vegetables: 10,
	models.Fruits:     12,
	models.Bakery:     7,
	models.Seafood:    3,
}

// storageMultiplier scales the base shelf life per storage type.
var storageMultiplier = map[models.StorageType]map[models.FoodType]float64{
	models.Refrigerator: {
		models.Dairy: 1, models.Meat: 1, models.Vegetables: 1,
		models.Fruits: 1, models.Bakery: 1.5, models.Seafood: 1,
	},
	models.Freezer: {
		models.Dairy: 6, models.Meat: 36, models.Vegetables: 24,
		models.Fruits: 20, models.Bakery: 12, models.Seafood: 40,
	},
	models.Pantry: {
		models.Dairy: 0.1, models.Meat: 0.05, models.Vegetables: 0.5,
		models.Fruits: 0.6, models.Bakery: 1, models.Seafood: 0.05,
	},
}

// Generate synthesizes n labelled samples. The same seed always yields the same data.
// Conditions scatter around each storage type's ideal climate; warmer or more humid
// storage and longer storage time shorten the remaining shelf life.
func Generate(n int, seed int64) Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := Dataset{
		Records: make([]models.Record, 0, n),
		Targets: make([]float64, 0, n),
	}

	for i := 0; i < n; i++ {
		food := models.FoodTypes[rng.Intn(len(models.FoodTypes))]
		storage := models.StorageTypes[rng.Intn(len(models.StorageTypes))]
		ideal := rules.IdealFor(storage)

		temp := ideal.IdealTemp + rng.NormFloat64()*4
		humidity := math.Min(100, math.Max(10, ideal.IdealHumidity+rng.NormFloat64()*12))

		life := baseShelfLife[food] * storageMultiplier[storage][food]
		life *= math.Exp(-0.08 * math.Max(0, temp-ideal.IdealTemp))
		life *= 1 - 0.01*math.Max(0, humidity-ideal.IdealHumidity-10)

		days := rng.Float64() * life * 0.9
		remaining := math.Max(0, life-days+rng.NormFloat64()*0.5)

		ds.Records = append(ds.Records, models.Record{
			FoodType:    string(food),
			StorageType: string(storage),
			Temperature: round(temp, 1),
			Humidity:    round(humidity, 1),
			DaysStored:  round(days, 1),
		})
		ds.Targets = append(ds.Targets, round(remaining, 2))
	}
	return ds
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
