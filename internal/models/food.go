package models

// FoodType is the category of a stored food item.
type FoodType string

const (
	Dairy      FoodType = "dairy"
	Meat       FoodType = "meat"
	Vegetables FoodType = "vegetables"
	Fruits     FoodType = "fruits"
	Bakery     FoodType = "bakery"
	Seafood    FoodType = "seafood"
)

// StorageType is where the item is kept.
type StorageType string

const (
	Refrigerator StorageType = "refrigerator"
	Freezer      StorageType = "freezer"
	Pantry       StorageType = "pantry"
)

// DefaultFoodType and DefaultStorageType replace values outside the known sets.
const (
	DefaultFoodType    = Dairy
	DefaultStorageType = Refrigerator
)

// FoodTypes lists every supported food type.
var FoodTypes = []FoodType{Dairy, Meat, Vegetables, Fruits, Bakery, Seafood}

// StorageTypes lists every supported storage type.
var StorageTypes = []StorageType{Refrigerator, Freezer, Pantry}

// Valid reports whether f is one of the known food types.
func (f FoodType) Valid() bool {
	for _, known := range FoodTypes {
		if f == known {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known storage types.
func (s StorageType) Valid() bool {
	for _, known := range StorageTypes {
		if s == known {
			return true
		}
	}
	return false
}

// NormalizeFoodType maps unknown values to DefaultFoodType.
func NormalizeFoodType(v string) FoodType {
	if f := FoodType(v); f.Valid() {
		return f
	}
	return DefaultFoodType
}

// NormalizeStorageType maps unknown values to DefaultStorageType.
func NormalizeStorageType(v string) StorageType {
	if s := StorageType(v); s.Valid() {
		return s
	}
	return DefaultStorageType
}
