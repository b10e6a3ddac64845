package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Repositories bundles all repository instances
type Repositories struct {
	User    UserRepository
	Profile ProfileRepository
	Plan    PlanRepository
	Payment PaymentRepository
	History HistoryRepository
}

// NewRepositories creates all repositories against one DB handle
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Profile: NewProfileRepository(db),
		Plan:    NewPlanRepository(db),
		Payment: NewPaymentRepository(db),
		History: NewHistoryRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetProfileRepository returns the profile repository
func (f *Factory) GetProfileRepository() ProfileRepository {
	return f.GetRepositories().Profile
}

// GetPlanRepository returns the plan ledger repository
func (f *Factory) GetPlanRepository() PlanRepository {
	return f.GetRepositories().Plan
}

// GetPaymentRepository returns the payment record repository
func (f *Factory) GetPaymentRepository() PaymentRepository {
	return f.GetRepositories().Payment
}

// GetHistoryRepository returns the post history repository
func (f *Factory) GetHistoryRepository() HistoryRepository {
	return f.GetRepositories().History
}

var (
	globalFactory *Factory
	globalMu      sync.Mutex
)

// InitGlobalFactory wires the process-wide factory used by controllers.
func InitGlobalFactory(db *gorm.DB) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalFactory = NewFactory(db)
}

// GetGlobalFactory returns the process-wide repository factory.
func GetGlobalFactory() *Factory {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalFactory
}
