package plans

// Defaults is the built-in catalogue. Prices are in rupees.
func Defaults(freeCredits int64) []Plan {
	return []Plan{
		{ID: FreePlanID, Name: "Free", Credits: freeCredits, Public: true},
		{ID: "starter", Name: "Starter", Description: "Great for students and beginners", Credits: 30, Public: true, MonthlyPrice: 99},
		{ID: "creator", Name: "Creator", Description: "Perfect for freelancers and content creators", Credits: 100, Public: true, MonthlyPrice: 249},
		{ID: "pro", Name: "Pro", Description: "For professionals and small businesses", Credits: 300, Public: true, MonthlyPrice: 599},
		{ID: "business", Name: "Business", Description: "For agencies and growing teams", Credits: 1000, Unlimited: true, Public: true, MonthlyPrice: 1499},
		{ID: "test", Name: "Test", Description: "Testing plan for development", Credits: 5, MonthlyPrice: 1},
	}
}
