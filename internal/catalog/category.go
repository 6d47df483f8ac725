package catalog

import (
	"fmt"

	"sportpos/backend/internal/domain"
)

// BuildCategory assembles the tagged variant from the flat fields an
// admin submits. Fields that do not belong to the kind are ignored.
func BuildCategory(kind string, size string, color string, typ string, brand string) (domain.Category, error) {
	switch domain.CategoryKind(kind) {
	case domain.KindShoe:
		t, err := parseShoeType(typ)
		if err != nil {
			return domain.Category{}, err
		}
		return domain.Category{Kind: domain.KindShoe, Shoe: &domain.ShoeAttrs{Size: size, Color: color, Type: t}}, nil
	case domain.KindClothing:
		t, err := parseClothingType(typ)
		if err != nil {
			return domain.Category{}, err
		}
		return domain.Category{Kind: domain.KindClothing, Clothing: &domain.ClothingAttrs{Size: size, Color: color, Type: t}}, nil
	case domain.KindAccessory:
		t, err := parseAccessoryType(typ)
		if err != nil {
			return domain.Category{}, err
		}
		return domain.Category{Kind: domain.KindAccessory, Accessory: &domain.AccessoryAttrs{Brand: brand, Type: t}}, nil
	default:
		return domain.Category{}, fmt.Errorf("unknown product kind %q", kind)
	}
}
