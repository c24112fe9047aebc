package editor

// DefaultMarkup is the markup buffer a new session starts with.
const DefaultMarkup = `
<div class="bg-neutral-800 backdrop-blur-lg rounded-2xl p-8 max-w-md mx-auto mt-20 shadow-2xl">
  <h1 class="text-4xl font-bold text-neutral-50 mb-4">Welcome to HTML Editor! 👋</h1>
  <p class="text-neutral-400 mb-6">Edit the HTML on the left to see live changes here. Tailwind CSS is already loaded!</p>
  <button
    class="bg-neutral-50 text-neutral-900 px-6 py-3 rounded-lg font-semibold hover:bg-neutral-100 transition-colors duration-200 cursor-pointer"
    onclick="this.textContent = 'Clicked!'">
    Click me!
  </button>
</div>
`

// DefaultStyleConfig is the Tailwind configuration a new session starts
// with.
const DefaultStyleConfig = `/** @type {import('tailwindcss').Config} */
module.exports = {
  content: [],
  theme: {
    extend: {},
  },
  plugins: [],
}`
