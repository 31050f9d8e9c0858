package server

import (
	"fmt"
	"net/http"
)

// handleTrackerJS serves the landing-page tracking script
func (s *Server) handleTrackerJS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	serverURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write([]byte(GenerateTrackerScript(serverURL)))
}

// GenerateTrackerScript generates the imperius.js tracker with the given
// server URL. The script: keeps a session id in localStorage, reports
// page views, scroll depth, form focus and CTA clicks as lead actions,
// requests variant assignments for elements tagged with data-imp-test, and
// reports conversions on elements tagged with data-imp-convert.
func GenerateTrackerScript(serverURL string) string {
	return fmt.Sprintf(`(function(){
  var S='%s';

  // Get or create session ID
  var sid=localStorage.getItem('imp_sid');
  if(!sid){
    sid=crypto.randomUUID();
    localStorage.setItem('imp_sid',sid);
  }else{
    action('return_visit','');
  }

  function action(type,value){
    navigator.sendBeacon(S+'/api/analytics/lead-action',
      JSON.stringify({sessionId:sid,actionType:type,actionValue:value||''}));
  }

  function post(path,body,cb){
    fetch(S+path,{method:'POST',headers:{'Content-Type':'application/json'},
      body:JSON.stringify(body)}).then(function(r){return r.json();}).then(cb)
      .catch(function(){});
  }

  // Page view
  action('page_view',location.pathname);

  // Scroll depth thresholds, each reported once
  var sent50=false,sent75=false;
  window.addEventListener('scroll',function(){
    var d=(window.scrollY+window.innerHeight)/document.body.scrollHeight*100;
    if(!sent50&&d>=50){sent50=true;action('scroll_50','50');}
    if(!sent75&&d>=75){sent75=true;action('scroll_75','75');}
  },{passive:true});

  // Form focus and email fill
  document.querySelectorAll('input,textarea').forEach(function(el){
    var focused=false;
    el.addEventListener('focus',function(){
      if(!focused){focused=true;action('form_focus',el.name||el.id||'');}
    });
    if(el.type==='email'){
      el.addEventListener('change',function(){
        if(el.value){action('email_fill',el.value);}
      });
    }
  });

  // CTA clicks
  document.querySelectorAll('[data-imp-cta]').forEach(function(el){
    el.addEventListener('click',function(){
      action('cta_click',el.dataset.impCta);
    });
  });

  // A/B test elements: fetch assignment, apply variant payload text
  document.querySelectorAll('[data-imp-test]').forEach(function(el){
    var name=el.dataset.impTest;
    post('/api/analytics/ab-tests/assignment',{sessionId:sid,testName:name},function(res){
      if(!res||!res.success||!res.assignment)return;
      var v=res.assignment.variant;
      el.dataset.impVariant=v;
      var texts=JSON.parse(el.dataset.impVariants||'{}');
      if(texts[v])el.textContent=texts[v];
    });
  });

  // Conversion elements
  document.querySelectorAll('[data-imp-convert]').forEach(function(el){
    el.addEventListener('click',function(){
      var name=el.dataset.impConvert;
      var target=document.querySelector('[data-imp-test="'+name+'"]');
      var v=target?target.dataset.impVariant:'';
      if(!v)return;
      post('/api/analytics/ab-tests/conversion',
        {sessionId:sid,testName:name,variant:v},function(){});
    });
  });
})();`, serverURL)
}
