package entities

// ProductID identifies a product in the catalog
type ProductID int64

// UnitID identifies a unit of measure
type UnitID int64

// ProductType classifies how a product is sourced and consumed
type ProductType string

const (
	ProductTypeFinishedGood   ProductType = "FG"
	ProductTypeWorkInProgress ProductType = "WIP"
	ProductTypeRawMaterial    ProductType = "RM"
	ProductTypePackaging      ProductType = "PKG"
	ProductTypeService        ProductType = "SVC"
	ProductTypeTooling        ProductType = "TOOL"
)

// IsValid reports whether the type is one of the known product types
func (t ProductType) IsValid() bool {
	switch t {
	case ProductTypeFinishedGood, ProductTypeWorkInProgress, ProductTypeRawMaterial,
		ProductTypePackaging, ProductTypeService, ProductTypeTooling:
		return true
	default:
		return false
	}
}

// IsManufactured reports whether products of this type are built from their own BOM
func (t ProductType) IsManufactured() bool {
	return t == ProductTypeFinishedGood || t == ProductTypeWorkInProgress
}

// Product represents an item of the product catalog
type Product struct {
	ID          ProductID
	Code        string
	Name        string
	Type        ProductType
	DefaultUnit UnitID
	Active      bool
}

// Unit represents a unit of measure
type Unit struct {
	ID   UnitID
	Code string
	Name string
}
