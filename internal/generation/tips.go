package generation

import "math/rand/v2"

// HealthTips are appended after the greeting menu.
var HealthTips = []string{
	"🌿 *Health Tip:* Drink at least 3 liters of water daily to stay hydrated and maintain healthy kidney function!",
	"🥗 *Health Tip:* Eat a rainbow! Include fruits and vegetables of different colors in your diet for maximum nutrition.",
	"🏃 *Health Tip:* Walk for 30 minutes daily. It improves heart health, boosts mood, and helps maintain healthy weight.",
	"😴 *Health Tip:* Get 7-8 hours of quality sleep. Good sleep strengthens immunity and improves mental health.",
	"🧘 *Health Tip:* Practice deep breathing for 5 minutes daily. It reduces stress and improves lung capacity.",
	"🚭 *Health Tip:* Avoid smoking and limit alcohol. These habits significantly reduce risk of chronic diseases.",
	"🧼 *Health Tip:* Wash your hands regularly with soap for 20 seconds to prevent infections.",
	"☀️ *Health Tip:* Get 15 minutes of morning sunlight daily for natural Vitamin D and better bone health.",
	"🥛 *Health Tip:* Include calcium-rich foods like milk, yogurt, and leafy greens for strong bones and teeth.",
	"🧠 *Health Tip:* Keep your mind active with puzzles, reading, or learning new skills.",
	"💪 *Health Tip:* Stretch for 10 minutes daily to improve flexibility and prevent injuries.",
	"🥤 *Health Tip:* Limit sugary drinks. Replace soda with water, herbal tea, or fresh fruit juice.",
	"🏥 *Health Tip:* Get regular health checkups. Early detection leads to better treatment outcomes.",
}

// RandomHealthTip picks one tip.
func RandomHealthTip() string {
	return HealthTips[rand.IntN(len(HealthTips))]
}
