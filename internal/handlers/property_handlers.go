package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"mhp_backend_echo/internal/middleware"
	"mhp_backend_echo/internal/models"
	"mhp_backend_echo/internal/services"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	propertyListCache = 2 * time.Minute
)

// PropertyHandler serves the listing catalogue.
type PropertyHandler struct {
	db    *gorm.DB
	cache *services.RedisCache
}

func NewPropertyHandler(db *gorm.DB, cache *services.RedisCache) *PropertyHandler {
	return &PropertyHandler{db: db, cache: cache}
}

type PropertyRequest struct {
	Name        string   `json:"name" validate:"required"`
	Type        string   `json:"type" validate:"required"`
	Category    string   `json:"category" validate:"required"`
	Address     string   `json:"address"`
	Description string   `json:"description"`
	Price       float64  `json:"price" validate:"gte=0"`
	TotalPrice  float64  `json:"total_price" validate:"gte=0"`
	Maintenance float64  `json:"maintenance" validate:"gte=0"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Region      string   `json:"region"`
	District    string   `json:"district"`
	Facilities  []string `json:"facilities"`
	ImageURLs   []string `json:"image_urls"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// List returns a paginated page of listings with optional filters. A
// short-lived cache sits in front of the unfiltered first pages, which
// carry nearly all of the read traffic.
func (h *PropertyHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	category := c.QueryParam("category")
	propType := c.QueryParam("type")
	region := c.QueryParam("region")
	district := c.QueryParam("district")

	fetch := func() ([]models.Property, error) {
		query := h.db.Preload("Facilities").Preload("Images").
			Order("created_at DESC").
			Offset((page - 1) * size).Limit(size)
		if category != "" {
			query = query.Where("category = ?", category)
		}
		if propType != "" {
			query = query.Where("type = ?", propType)
		}
		if region != "" {
			query = query.Where("region = ?", region)
		}
		if district != "" {
			query = query.Where("district = ?", district)
		}

		var properties []models.Property
		err := query.Find(&properties).Error
		return properties, err
	}

	var (
		properties []models.Property
		err        error
	)
	if category == "" && propType == "" && region == "" && district == "" {
		key := fmt.Sprintf("properties:page:%d:%d", page, size)
		properties, err = services.GetOrSet(h.cache, c.Request().Context(), key, propertyListCache, fetch)
	} else {
		properties, err = fetch()
	}
	if err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to fetch properties")
	}
	return RespondData(c, http.StatusOK, "Properties fetched successfully", len(properties), properties)
}

// Get returns a single listing with its facilities, images and reviews.
func (h *PropertyHandler) Get(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid property id")
	}

	var property models.Property
	if err := h.db.Preload("Facilities").Preload("Images").Preload("Reviews").Preload("Reviews.User").
		First(&property, id).Error; err != nil {
		return Respond(c, http.StatusNotFound, "Property not found")
	}
	return RespondData(c, http.StatusOK, "Property fetched successfully", 1, property)
}

// Create stores a new listing owned by the authenticated user.
func (h *PropertyHandler) Create(c echo.Context) error {
	var req PropertyRequest
	if err := c.Bind(&req); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user := middleware.UserFromContext(c)
	property := models.Property{
		UploaderID:  user.ID,
		Name:        req.Name,
		Type:        req.Type,
		Category:    req.Category,
		Address:     req.Address,
		Description: req.Description,
		Price:       req.Price,
		TotalPrice:  req.TotalPrice,
		Maintenance: req.Maintenance,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Region:      req.Region,
		District:    req.District,
	}
	for _, name := range req.Facilities {
		property.Facilities = append(property.Facilities, models.PropertyFacility{Name: name})
	}
	for _, url := range req.ImageURLs {
		property.Images = append(property.Images, models.PropertyImage{URL: url})
	}

	if err := h.db.Create(&property).Error; err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to create property")
	}
	return RespondData(c, http.StatusCreated, "Property created successfully", 1, property)
}

// Update replaces the mutable fields of a listing. Only the uploader may
// do this.
func (h *PropertyHandler) Update(c echo.Context) error {
	property, errResp := h.ownedProperty(c)
	if property == nil {
		return errResp
	}

	var req PropertyRequest
	if err := c.Bind(&req); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	property.Name = req.Name
	property.Type = req.Type
	property.Category = req.Category
	property.Address = req.Address
	property.Description = req.Description
	property.Price = req.Price
	property.TotalPrice = req.TotalPrice
	property.Maintenance = req.Maintenance
	property.Latitude = req.Latitude
	property.Longitude = req.Longitude
	property.Region = req.Region
	property.District = req.District

	if err := h.db.Save(property).Error; err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to update property")
	}
	return RespondData(c, http.StatusOK, "Property updated successfully", 1, property)
}

// Delete removes a listing. Only the uploader may do this.
func (h *PropertyHandler) Delete(c echo.Context) error {
	property, errResp := h.ownedProperty(c)
	if property == nil {
		return errResp
	}
	if err := h.db.Delete(property).Error; err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to delete property")
	}
	return Respond(c, http.StatusOK, "Property deleted successfully")
}

// MyProperties lists everything the authenticated user has uploaded.
func (h *PropertyHandler) MyProperties(c echo.Context) error {
	user := middleware.UserFromContext(c)

	var properties []models.Property
	if err := h.db.Preload("Facilities").Preload("Images").
		Where("uploader_id = ?", user.ID).
		Order("created_at DESC").
		Find(&properties).Error; err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to fetch properties")
	}
	return RespondData(c, http.StatusOK, "Properties fetched successfully", len(properties), properties)
}

// CreateReview attaches a rating and comment to a listing.
func (h *PropertyHandler) CreateReview(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid property id")
	}

	var property models.Property
	if err := h.db.First(&property, id).Error; err != nil {
		return Respond(c, http.StatusNotFound, "Property not found")
	}

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user := middleware.UserFromContext(c)
	review := models.PropertyReview{
		PropertyID: property.ID,
		UserID:     user.ID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	if err := h.db.Create(&review).Error; err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to create review")
	}
	return RespondData(c, http.StatusCreated, "Review created successfully", 1, review)
}

// ListReviews returns all reviews of a listing.
func (h *PropertyHandler) ListReviews(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid property id")
	}

	var reviews []models.PropertyReview
	if err := h.db.Preload("User").
		Where("property_id = ?", id).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to fetch reviews")
	}
	return RespondData(c, http.StatusOK, "Reviews fetched successfully", len(reviews), reviews)
}

func (h *PropertyHandler) ownedProperty(c echo.Context) (*models.Property, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, Respond(c, http.StatusBadRequest, "Invalid property id")
	}

	var property models.Property
	if err := h.db.First(&property, id).Error; err != nil {
		return nil, Respond(c, http.StatusNotFound, "Property not found")
	}

	user := middleware.UserFromContext(c)
	if property.UploaderID != user.ID {
		return nil, Respond(c, http.StatusForbidden, "You do not own this property")
	}
	return &property, nil
}
