package repository

import (
	"context"
	"errors"

	"cafeteria/internal/model"

	"gorm.io/gorm"
)

var (
	ErrRestaurantNotFound  = errors.New("餐厅不存在")
	ErrMenuItemNotFound    = errors.New("菜品不存在")
	ErrDuplicateRestaurant = errors.New("餐厅名称已存在")
)

type RestaurantRepository struct {
	db *gorm.DB
}

func NewRestaurantRepository(db *gorm.DB) *RestaurantRepository {
	return &RestaurantRepository{db: db}
}

// Create 名称唯一，重复时返回 ErrDuplicateRestaurant
func (r *RestaurantRepository) Create(ctx context.Context, restaurant *model.Restaurant) error {
	err := r.db.WithContext(ctx).Create(restaurant).Error
	if isDuplicateKey(err) {
		return ErrDuplicateRestaurant
	}
	return err
}

// GetByID 连同菜单一起返回
func (r *RestaurantRepository) GetByID(ctx context.Context, id int64) (*model.Restaurant, error) {
	var restaurant model.Restaurant
	err := r.db.WithContext(ctx).
		Preload("MenuItems", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", id).
		First(&restaurant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRestaurantNotFound
		}
		return nil, err
	}
	return &restaurant, nil
}

func (r *RestaurantRepository) List(ctx context.Context) ([]*model.Restaurant, error) {
	var restaurants []*model.Restaurant
	err := r.db.WithContext(ctx).
		Preload("MenuItems", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("id ASC").
		Find(&restaurants).Error
	return restaurants, err
}

func (r *RestaurantRepository) CreateMenuItem(ctx context.Context, item *model.MenuItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *RestaurantRepository) GetMenuItem(ctx context.Context, id int64) (*model.MenuItem, error) {
	var item model.MenuItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMenuItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ListMenuItems 只返回指定餐厅的菜品
func (r *RestaurantRepository) ListMenuItems(ctx context.Context, restaurantID int64) ([]*model.MenuItem, error) {
	var items []*model.MenuItem
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// GetMenuItemsByIDs 按 id 批量查询菜品，不存在的 id 不会出现在结果中
func (r *RestaurantRepository) GetMenuItemsByIDs(ctx context.Context, tx *gorm.DB, ids []int64) (map[int64]*model.MenuItem, error) {
	if tx == nil {
		tx = r.db
	}
	var items []*model.MenuItem
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.MenuItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return byID, nil
}

// UpdateMenuItemAvailability 上架或下架菜品，调用方先确认菜品存在
func (r *RestaurantRepository) UpdateMenuItemAvailability(ctx context.Context, id int64, available bool) error {
	return r.db.WithContext(ctx).
		Model(&model.MenuItem{}).
		Where("id = ?", id).
		Update("available", available).Error
}
