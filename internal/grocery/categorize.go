// Package grocery guesses a category for an item from its name.
package grocery

import (
	"strings"

	"github.com/dukerupert/larder/internal/model"
)

// rule lists the names that map to a category. Exact names are checked across
// all rules first; keywords are then tried rule by rule, in table order, so
// earlier rules win substring ties.
type rule struct {
	category string
	exact    []string
	keywords []string
}

var rules = []rule{
	{
		category: "Meat & Seafood",
		exact: []string{"chicken", "beef", "pork", "turkey", "bacon", "sausage", "ham", "steak", "salmon",
			"shrimp", "tuna", "fish", "ground beef", "ground turkey", "hot dogs", "deli meat", "lamb", "crab",
			"lobster", "tilapia"},
		keywords: []string{"chicken breast", "chicken thigh", "chicken wing", "ground beef", "ground turkey",
			"deli meat", "pork chop", "hot dog"},
	},
	{
		category: "Dairy",
		exact: []string{"milk", "eggs", "butter", "cheese", "yogurt", "cream cheese", "sour cream",
			"heavy cream", "half and half", "cottage cheese"},
		keywords: []string{"cream cheese", "sour cream", "heavy cream", "cottage cheese", "half and half",
			"greek yogurt", "almond milk", "oat milk", "yogurt", "cheese", "milk", "butter", "cream", "egg"},
	},
	{
		category: "Produce",
		exact: []string{"apple", "apples", "banana", "bananas", "orange", "oranges", "lemon", "lemons",
			"lime", "limes", "avocado", "avocados", "tomato", "tomatoes", "potato", "potatoes", "onion",
			"onions", "garlic", "lettuce", "spinach", "kale", "broccoli", "carrots", "celery", "cucumber",
			"cucumbers", "peppers", "mushrooms", "corn", "grapes", "strawberries", "blueberries",
			"raspberries", "watermelon", "pineapple", "mango", "peach", "peaches", "pear", "pears",
			"cilantro", "basil", "parsley", "ginger", "jalapeño", "zucchini", "asparagus", "green beans"},
		keywords: []string{"salad mix", "baby spinach", "green onion", "sweet potato", "bell pepper",
			"cherry tomato", "romaine", "arugula", "cabbage", "cauliflower", "squash", "melon", "berry",
			"berries", "fruit", "herb", "lettuce", "spinach", "kale", "apple", "banana", "tomato", "potato",
			"onion", "pepper", "carrot", "celery"},
	},
	{
		category: "Bakery",
		exact:    []string{"bread", "bagels", "tortillas", "rolls", "buns", "muffins", "croissants", "pita"},
		keywords: []string{"sourdough", "whole wheat", "bread", "bagel", "tortilla", "bun", "roll", "muffin",
			"croissant"},
	},
	{
		category: "Pantry",
		exact: []string{"rice", "pasta", "flour", "sugar", "salt", "pepper", "oil", "olive oil", "vinegar",
			"soy sauce", "ketchup", "mustard", "mayonnaise", "honey", "peanut butter", "jelly", "jam",
			"cereal", "oatmeal", "canned beans", "canned tomatoes", "soup", "broth", "beans", "lentils",
			"nuts", "almonds", "spaghetti", "noodles", "maple syrup", "hot sauce", "salsa"},
		keywords: []string{"peanut butter", "olive oil", "coconut oil", "maple syrup", "hot sauce",
			"soy sauce", "pasta sauce", "tomato sauce", "canned", "cereal", "oatmeal", "granola", "rice",
			"pasta", "noodle", "flour", "sugar", "spice", "seasoning", "sauce", "broth", "stock", "soup",
			"bean", "lentil"},
	},
	{
		category: "Frozen",
		exact: []string{"ice cream", "frozen pizza", "frozen veggies", "frozen fruit", "frozen waffles",
			"popsicles"},
		keywords: []string{"frozen", "ice cream", "popsicle"},
	},
	{
		category: "Beverages",
		exact: []string{"water", "juice", "coffee", "tea", "soda", "beer", "wine", "kombucha", "lemonade",
			"sparkling water"},
		keywords: []string{"sparkling water", "orange juice", "apple juice", "coffee", "tea", "juice", "soda",
			"water", "beer", "wine", "drink"},
	},
	{
		category: "Snacks",
		exact: []string{"chips", "crackers", "cookies", "popcorn", "pretzels", "granola bars", "trail mix",
			"candy", "chocolate", "fruit snacks"},
		keywords: []string{"granola bar", "trail mix", "fruit snack", "chip", "cracker", "cookie", "popcorn",
			"pretzel", "candy", "chocolate", "snack"},
	},
	{
		category: "Household",
		exact: []string{"paper towels", "toilet paper", "trash bags", "dish soap", "laundry detergent",
			"sponges", "aluminum foil", "plastic wrap", "zip bags", "ziplock bags", "light bulbs",
			"batteries", "napkins", "cleaning spray", "bleach"},
		keywords: []string{"paper towel", "toilet paper", "trash bag", "garbage bag", "dish soap", "laundry",
			"detergent", "cleaner", "cleaning", "sponge", "foil", "plastic wrap", "ziplock", "battery",
			"light bulb"},
	},
	{
		category: "Personal Care",
		exact: []string{"shampoo", "conditioner", "soap", "body wash", "toothpaste", "toothbrush",
			"deodorant", "lotion", "sunscreen", "floss", "razors", "tissues", "band-aids"},
		keywords: []string{"body wash", "shampoo", "conditioner", "toothpaste", "toothbrush", "deodorant",
			"lotion", "sunscreen", "razor", "tissue", "band-aid"},
	},
}

var exactIndex = func() map[string]string {
	idx := make(map[string]string)
	for _, r := range rules {
		for _, name := range r.exact {
			idx[name] = r.category
		}
	}
	return idx
}()

// Categorize returns the default category name for an item name, matching
// case-insensitively on the whole name first and on keywords second. Unknown
// names map to model.OtherCategory.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return model.OtherCategory
	}
	if cat, ok := exactIndex[name]; ok {
		return cat
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(name, kw) {
				return r.category
			}
		}
	}
	return model.OtherCategory
}

// Resolve categorizes itemName and keeps the guess only when it names one of
// the known categories. It returns the known spelling, or model.OtherCategory.
func Resolve(itemName string, known []string) string {
	guess := Categorize(itemName)
	for _, k := range known {
		if strings.EqualFold(k, guess) {
			return k
		}
	}
	return model.OtherCategory
}
