package rules

import "shelflife/internal/models"

// FoodThresholds are the physical limits for one food type, in °C and % humidity.
type FoodThresholds struct {
	MaxTemp        float64
	MaxHumidity    float64
	DangerZoneTemp float64
}

// StorageIdeal is the target climate of a storage type.
type StorageIdeal struct {
	IdealTemp     float64
	IdealHumidity float64
}

var foodThresholds = map[models.FoodType]FoodThresholds{
	models.Dairy:      {MaxTemp: 8, MaxHumidity: 75, DangerZoneTemp: 12},
	models.Meat:       {MaxTemp: 6, MaxHumidity: 70, DangerZoneTemp: 8},
	models.Vegetables: {MaxTemp: 8, MaxHumidity: 95, DangerZoneTemp: 15},
	models.Fruits:     {MaxTemp: 10, MaxHumidity: 90, DangerZoneTemp: 20},
	models.Bakery:     {MaxTemp: 25, MaxHumidity: 60, DangerZoneTemp: 30},
	models.Seafood:    {MaxTemp: 4, MaxHumidity: 70, DangerZoneTemp: 5},
}

var storageIdeals = map[models.StorageType]StorageIdeal{
	models.Refrigerator: {IdealTemp: 4, IdealHumidity: 65},
	models.Freezer:      {IdealTemp: -18, IdealHumidity: 60},
	models.Pantry:       {IdealTemp: 20, IdealHumidity: 50},
}

// ThresholdsFor returns the limits of f, falling back to dairy for unknown types.
func ThresholdsFor(f models.FoodType) FoodThresholds {
	if t, ok := foodThresholds[f]; ok {
		return t
	}
	return foodThresholds[models.DefaultFoodType]
}

// IdealFor returns the target climate of s, falling back to the refrigerator.
func IdealFor(s models.StorageType) StorageIdeal {
	if i, ok := storageIdeals[s]; ok {
		return i
	}
	return storageIdeals[models.DefaultStorageType]
}
