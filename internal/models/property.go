package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PropertyCategoryRent      = "Rent"
	PropertyCategorySale      = "Sale"
	PropertyCategoryShortStay = "Short Stay"
)

const (
	PropertyTypeHouse        = "House"
	PropertyTypeApartment    = "Apartment"
	PropertyTypeRoom         = "Room"
	PropertyTypeLand         = "Land"
	PropertyTypeOffice       = "Office"
	PropertyTypeConstruction = "Construction"
)

// Property is a listing uploaded by a user.
type Property struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UploaderID  uint     `gorm:"index" json:"uploader_id"`
	Name        string   `gorm:"type:varchar(255)" json:"name"`
	Type        string   `gorm:"type:varchar(100)" json:"type"`
	Category    string   `gorm:"type:varchar(255)" json:"category"`
	Address     string   `gorm:"type:text" json:"address"`
	Description string   `gorm:"type:text" json:"description"`
	Price       float64  `gorm:"type:decimal(10,2)" json:"price"`
	TotalPrice  float64  `gorm:"type:decimal(10,2)" json:"total_price"`
	Maintenance float64  `gorm:"type:decimal(10,2)" json:"maintenance"`
	Latitude    *float64 `gorm:"type:decimal(10,7)" json:"latitude"`
	Longitude   *float64 `gorm:"type:decimal(10,7)" json:"longitude"`
	Region      string   `gorm:"type:varchar(100)" json:"region"`
	District    string   `gorm:"type:varchar(100)" json:"district"`
	IsBooked    bool     `gorm:"default:false" json:"is_booked"`

	Uploader   User               `gorm:"foreignKey:UploaderID" json:"uploader,omitempty"`
	Facilities []PropertyFacility `gorm:"foreignKey:PropertyID" json:"facilities,omitempty"`
	Images     []PropertyImage    `gorm:"foreignKey:PropertyID" json:"images,omitempty"`
	Reviews    []PropertyReview   `gorm:"foreignKey:PropertyID" json:"reviews,omitempty"`
}

// PropertyFacility is a named amenity attached to one property.
type PropertyFacility struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PropertyID uint   `gorm:"index" json:"property_id"`
	Name       string `gorm:"type:varchar(100)" json:"name"`
}

// PropertyImage stores the location of an already-uploaded image. Binary
// handling lives outside this service.
type PropertyImage struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PropertyID uint   `gorm:"index" json:"property_id"`
	URL        string `gorm:"type:varchar(255)" json:"url"`
}

// PropertyReview is feedback left by a user on someone else's listing.
type PropertyReview struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PropertyID uint   `gorm:"index" json:"property_id"`
	UserID     uint   `gorm:"index" json:"user_id"`
	Rating     int    `json:"rating"`
	Comment    string `gorm:"type:text" json:"comment"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
