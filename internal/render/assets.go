package render

// Static fragments embedded in every HTML listing. These are constants so
// rendering stays byte-deterministic.

const listingCSS = `body { font-family: Arial, sans-serif; margin: 40px; }
.item { margin-bottom: 30px; border-bottom: 1px solid #ccc; padding-bottom: 20px; }
.item-number { font-weight: bold; color: #7f8c8d; margin-bottom: 5px; }
h1 { color: #2c3e50; }
h2 { color: #3498db; }
.notice { font-style: italic; background-color: #f8f9fa; padding: 10px; border-left: 3px solid #3498db; margin-bottom: 20px; }
.description { margin-bottom: 20px; }
.search-container { margin-bottom: 20px; padding: 15px; background-color: #f8f9fa; border-radius: 5px; }
#searchInput { width: 300px; padding: 8px; font-size: 16px; border: 1px solid #ccc; border-radius: 4px; }
#searchBtn { padding: 8px 15px; background-color: #3498db; color: white; border: none; border-radius: 4px; cursor: pointer; margin-left: 10px; }
#searchBtn:hover { background-color: #2980b9; }
#searchCount { margin-left: 15px; font-style: italic; }
.highlight { background-color: yellow; font-weight: bold; }
.hidden { display: none; }
`

const searchContainer = `<div class='search-container'>
<input type='text' id='searchInput' placeholder='Search within this page...' />
<button id='searchBtn'>Search</button>
<span id='searchCount'></span>
</div>
`

const searchScript = `<script>
document.addEventListener('DOMContentLoaded', function() {
  const searchInput = document.getElementById('searchInput');
  const searchBtn = document.getElementById('searchBtn');
  const searchCount = document.getElementById('searchCount');
  const items = document.querySelectorAll('.item');

  function clearHighlights(root) {
    const highlighted = root.querySelectorAll('.highlight');
    highlighted.forEach(el => {
      const parent = el.parentNode;
      parent.replaceChild(document.createTextNode(el.textContent), el);
      parent.normalize();
    });
  }

  function performSearch() {
    const searchTerm = searchInput.value.toLowerCase().trim();
    if (searchTerm === '') {
      items.forEach(item => {
        item.classList.remove('hidden');
        clearHighlights(item);
      });
      searchCount.textContent = '';
      return;
    }
    let matchCount = 0;
    items.forEach(item => {
      clearHighlights(item);
      const hasMatch = item.textContent.toLowerCase().includes(searchTerm);
      if (hasMatch) {
        item.classList.remove('hidden');
        matchCount++;
      } else {
        item.classList.add('hidden');
      }
    });
    searchCount.textContent = 'Found ' + matchCount + ' matching items';
  }

  searchBtn.addEventListener('click', performSearch);
  searchInput.addEventListener('keyup', function(event) {
    if (event.key === 'Enter') {
      performSearch();
    }
  });
});
</script>
`
