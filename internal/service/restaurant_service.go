package service

import (
	"context"
	"log"
	"strings"

	"cafeteria/internal/model"
	"cafeteria/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RestaurantService 餐厅与菜单维护，订单的菜品名称和单价都从这里取
type RestaurantService struct {
	restaurantRepo *repository.RestaurantRepository
}

func NewRestaurantService(db *gorm.DB) *RestaurantService {
	return &RestaurantService{
		restaurantRepo: repository.NewRestaurantRepository(db),
	}
}

type AddRestaurantRequest struct {
	Name          string
	Location      string
	ContactNumber string
}

type AddMenuItemRequest struct {
	RestaurantID int64
	Name         string
	Description  string
	Price        decimal.Decimal
}

func (s *RestaurantService) AddRestaurant(ctx context.Context, req *AddRestaurantRequest) (*model.Restaurant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, newError(KindInvalidArgument, "餐厅名称不能为空", nil)
	}

	restaurant := &model.Restaurant{
		Name:          name,
		Location:      strings.TrimSpace(req.Location),
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		MenuItems:     []model.MenuItem{},
	}
	if err := s.restaurantRepo.Create(ctx, restaurant); err != nil {
		return nil, classify(err)
	}

	log.Printf("[Restaurant] 餐厅已添加: id=%d, name=%s", restaurant.ID, restaurant.Name)
	return restaurant, nil
}

// AddMenuItem 新菜品默认上架，价格规则与充值金额相同
func (s *RestaurantService) AddMenuItem(ctx context.Context, req *AddMenuItemRequest) (*model.MenuItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, newError(KindInvalidArgument, "菜品名称不能为空", nil)
	}
	if !validAmount(req.Price) {
		return nil, ErrInvalidAmount
	}
	if _, err := s.restaurantRepo.GetByID(ctx, req.RestaurantID); err != nil {
		return nil, classify(err)
	}

	item := &model.MenuItem{
		RestaurantID: req.RestaurantID,
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Price:        req.Price,
		Available:    true,
	}
	if err := s.restaurantRepo.CreateMenuItem(ctx, item); err != nil {
		return nil, classify(err)
	}

	log.Printf("[Restaurant] 菜品已添加: restaurantID=%d, itemID=%d, name=%s, price=%s",
		item.RestaurantID, item.ID, item.Name, item.Price.StringFixed(2))
	return item, nil
}

// SetMenuItemAvailability 下架后已有订单不受影响，新订单不能再点
func (s *RestaurantService) SetMenuItemAvailability(ctx context.Context, itemID int64, available bool) (*model.MenuItem, error) {
	item, err := s.restaurantRepo.GetMenuItem(ctx, itemID)
	if err != nil {
		return nil, classify(err)
	}
	if err := s.restaurantRepo.UpdateMenuItemAvailability(ctx, itemID, available); err != nil {
		return nil, classify(err)
	}
	item.Available = available
	return item, nil
}

func (s *RestaurantService) GetAll(ctx context.Context) ([]*model.Restaurant, error) {
	restaurants, err := s.restaurantRepo.List(ctx)
	if err != nil {
		return nil, persistence("查询餐厅失败", err)
	}
	return restaurants, nil
}

func (s *RestaurantService) GetByID(ctx context.Context, id int64) (*model.Restaurant, error) {
	restaurant, err := s.restaurantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return restaurant, nil
}

func (s *RestaurantService) ListMenuItems(ctx context.Context, restaurantID int64) ([]*model.MenuItem, error) {
	if _, err := s.restaurantRepo.GetByID(ctx, restaurantID); err != nil {
		return nil, classify(err)
	}
	items, err := s.restaurantRepo.ListMenuItems(ctx, restaurantID)
	if err != nil {
		return nil, persistence("查询菜单失败", err)
	}
	return items, nil
}
